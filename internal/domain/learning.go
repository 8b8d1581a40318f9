package domain

// LearningSnapshot es el estado completo de las tres capas de aprendizaje,
// tal y como se persiste de forma atómica tras cada resolución.
type LearningSnapshot struct {
	Buckets  []CalibrationBucket
	Perfs    map[MarketType]*MarketTypePerformance
	Trackers map[TrackerKey]*SignalTracker
}

// NewLearningSnapshot devuelve un snapshot con priors uniformes y las capas
// por tipo de mercado vacías.
func NewLearningSnapshot() *LearningSnapshot {
	s := &LearningSnapshot{
		Perfs:    make(map[MarketType]*MarketTypePerformance),
		Trackers: make(map[TrackerKey]*SignalTracker),
	}
	for _, r := range CalibrationRanges {
		s.Buckets = append(s.Buckets, NewCalibrationBucket(r[0], r[1]))
	}
	return s
}

// BucketFor devuelve el bucket de calibración para la confianza dada.
// Valores por debajo de 0.50 caen en el primer bucket; 1.0 en el último.
func (s *LearningSnapshot) BucketFor(confidence float64) *CalibrationBucket {
	if confidence < s.Buckets[0].Lo {
		return &s.Buckets[0]
	}
	for i := range s.Buckets {
		if s.Buckets[i].Contains(confidence) {
			return &s.Buckets[i]
		}
	}
	return &s.Buckets[len(s.Buckets)-1]
}

// PerfFor devuelve el rendimiento acumulado del tipo, creándolo si no existe.
func (s *LearningSnapshot) PerfFor(mt MarketType) *MarketTypePerformance {
	p, ok := s.Perfs[mt]
	if !ok {
		p = &MarketTypePerformance{MarketType: mt}
		s.Perfs[mt] = p
	}
	return p
}

// TrackerFor devuelve el tracker de la combinación, creándolo si no existe.
func (s *LearningSnapshot) TrackerFor(k TrackerKey) *SignalTracker {
	t, ok := s.Trackers[k]
	if !ok {
		t = &SignalTracker{SourceTier: k.SourceTier, InfoType: k.InfoType, MarketType: k.MarketType}
		s.Trackers[k] = t
	}
	return t
}
