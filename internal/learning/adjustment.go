// Package learning implementa las tres capas de aprendizaje (calibración,
// rendimiento por tipo de mercado y signal trackers) y el pipeline de
// ajuste de cinco pasos que consume sus correcciones.
package learning

import (
	"math"
	"time"

	"github.com/alejandrodnm/predictor/internal/domain"
)

const (
	minConfidence = 0.50
	maxConfidence = 0.99
	minProb       = 0.01
	maxProb       = 0.99

	signalWeightScale = 0.1
	minCalibSamples   = 10
)

// Adjustment es la salida del pipeline de ajuste sobre un estimate crudo.
type Adjustment struct {
	Probability float64
	Confidence  float64
	ExtraEdge   float64

	CalibrationDelta  float64
	SignalWeightDelta float64
}

// Adjust aplica los cinco pasos en orden fijo: calibración, pesos de
// señal, shrinkage, ajuste por tipo de mercado y decaimiento temporal.
// No muta el snapshot.
func Adjust(snap *domain.LearningSnapshot, est domain.Estimate, mt domain.MarketType, signals []domain.Signal, now time.Time) Adjustment {
	bucket := snap.BucketFor(est.Confidence)

	// Paso 1: corrección de calibración sobre la confianza.
	calibDelta := bucket.Correction()
	conf := clamp(est.Confidence+calibDelta, minConfidence, maxConfidence)

	// Paso 2: media de pesos de los trackers de las combinaciones citadas.
	weightDelta := 0.0
	if len(est.Tags) > 0 {
		var sum float64
		for _, tag := range est.Tags {
			key := domain.TrackerKey{SourceTier: tag.SourceTier, InfoType: tag.InfoType, MarketType: mt}
			if t, ok := snap.Trackers[key]; ok {
				sum += t.Weight()
			} else {
				sum += 1.0
			}
		}
		mean := sum / float64(len(est.Tags))
		weightDelta = (mean - 1.0) * signalWeightScale
		conf = clamp(conf+weightDelta, minConfidence, maxConfidence)
	}

	// Paso 3: shrinkage de la probabilidad hacia 0.5 según la precisión
	// observada del bucket. Sin efecto con pocas muestras.
	prob := est.Probability
	if bucket.SampleCount() >= minCalibSamples {
		s := bucket.ExpectedAccuracy() / bucket.Midpoint()
		prob = 0.5 + (est.Probability-0.5)*s
	}
	prob = clamp(prob, minProb, maxProb)

	// Paso 4: el rendimiento del tipo de mercado sube el listón de edge.
	extraEdge := 0.0
	if p, ok := snap.Perfs[mt]; ok {
		extraEdge = p.EdgeAdjustment()
	}

	// Paso 5: decaimiento temporal según la frescura de las señales.
	conf = temporalDecay(conf, est.Tags, signals, now)

	return Adjustment{
		Probability:       prob,
		Confidence:        conf,
		ExtraEdge:         extraEdge,
		CalibrationDelta:  calibDelta,
		SignalWeightDelta: weightDelta,
	}
}

// temporalDecay ajusta la confianza por frescura: un hecho verificado (I1)
// de menos de media hora la sube un 5%; si la señal más fresca tiene más de
// una hora la penaliza 5% por hora extra, con suelo en 0.85 por paso y en
// minConfidence en total.
func temporalDecay(conf float64, tags []domain.SignalTag, signals []domain.Signal, now time.Time) float64 {
	freshest := 2.0 // horas; pesimista cuando no hay señales fechadas
	hasFresh := false
	for _, s := range signals {
		if s.Timestamp.IsZero() {
			continue
		}
		age := now.Sub(s.Timestamp).Hours()
		if age < 0 {
			age = 0
		}
		if !hasFresh || age < freshest {
			freshest = age
			hasFresh = true
		}
	}

	recentI1 := false
	for _, tag := range tags {
		if tag.InfoType != domain.InfoI1 {
			continue
		}
		if !tag.Timestamp.IsZero() {
			if now.Sub(tag.Timestamp).Hours() < 0.5 {
				recentI1 = true
				break
			}
			continue
		}
		// Tag sin timestamp propio: usa la señal más fresca como proxy.
		if hasFresh && freshest < 0.5 {
			recentI1 = true
			break
		}
	}

	if recentI1 {
		conf = math.Min(conf*1.05, maxConfidence)
	}
	if freshest > 1.0 {
		factor := math.Max(0.85, 1.0-0.05*(freshest-1.0))
		conf = math.Max(conf*factor, minConfidence)
	}
	return conf
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
