package domain

// TrackerKey identifica un tracker: combinación (tier, info_type, market_type).
type TrackerKey struct {
	SourceTier SourceTier
	InfoType   InfoType
	MarketType MarketType
}

// SignalTracker mide si la presencia de una combinación (tier, info_type)
// correlaciona con trades ganadores dentro de un tipo de mercado. Cuatro
// contadores: presente/ausente × ganador/perdedor.
type SignalTracker struct {
	SourceTier     SourceTier
	InfoType       InfoType
	MarketType     MarketType
	PresentWinning int
	PresentLosing  int
	AbsentWinning  int
	AbsentLosing   int
}

// Lift devuelve winrate_presente / winrate_ausente. 1.0 mientras cualquiera
// de los dos lados tenga menos de 5 muestras, o si el winrate ausente es 0.
func (t SignalTracker) Lift() float64 {
	present := t.PresentWinning + t.PresentLosing
	absent := t.AbsentWinning + t.AbsentLosing
	if present < 5 || absent < 5 {
		return 1.0
	}
	winAbsent := float64(t.AbsentWinning) / float64(absent)
	if winAbsent == 0 {
		return 1.0
	}
	winPresent := float64(t.PresentWinning) / float64(present)
	return winPresent / winAbsent
}

// Weight convierte el lift en un peso de confianza acotado en [0.8, 1.2].
func (t SignalTracker) Weight() float64 {
	w := 1.0 + (t.Lift()-1.0)*0.3
	if w < 0.8 {
		return 0.8
	}
	if w > 1.2 {
		return 1.2
	}
	return w
}

// Record incrementa el contador que corresponde a la observación.
func (t *SignalTracker) Record(present, winning bool) {
	switch {
	case present && winning:
		t.PresentWinning++
	case present && !winning:
		t.PresentLosing++
	case !present && winning:
		t.AbsentWinning++
	default:
		t.AbsentLosing++
	}
}
