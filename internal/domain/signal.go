package domain

import "time"

// SourceTier es la clasificación programática de la procedencia de una señal.
type SourceTier string

const (
	TierS1 SourceTier = "S1" // fuentes oficiales primarias
	TierS2 SourceTier = "S2" // agencias de noticias (wire services)
	TierS3 SourceTier = "S3" // medios institucionales
	TierS4 SourceTier = "S4" // expertos verificados en redes sociales
	TierS5 SourceTier = "S5" // datos derivados del mercado
	TierS6 SourceTier = "S6" // fallback: fuente desconocida o de baja credibilidad
)

// TierCredibility mapea cada tier a su credibilidad base.
var TierCredibility = map[SourceTier]float64{
	TierS1: 0.95,
	TierS2: 0.90,
	TierS3: 0.80,
	TierS4: 0.65,
	TierS5: 0.70,
	TierS6: 0.30,
}

// Credibility devuelve la credibilidad base del tier (0.30 si es desconocido).
func (t SourceTier) Credibility() float64 {
	if c, ok := TierCredibility[t]; ok {
		return c
	}
	return 0.30
}

// InfoType es la clasificación semántica del contenido de una señal.
// I1-I5 las asigna el LM; I6 la asigna el collector cuando la señal
// es puramente price action del mercado.
type InfoType string

const (
	InfoI1 InfoType = "I1" // hecho verificado / outcome determinista
	InfoI2 InfoType = "I2" // direccional fuerte
	InfoI3 InfoType = "I3" // direccional débil
	InfoI4 InfoType = "I4" // cambio de sentimiento
	InfoI5 InfoType = "I5" // contradictoria / especulación
	InfoI6 InfoType = "I6" // derivada del mercado (asignada por el collector)
)

// SourceKind identifica el origen físico de la señal.
type SourceKind string

const (
	SourceSocial     SourceKind = "social"
	SourceRSS        SourceKind = "rss"
	SourceMarketData SourceKind = "market_data"
)

// Signal es una señal normalizada sobre un mercado, inmutable tras clasificarse.
// InfoType queda vacío en la recolección y lo rellena el LM.
type Signal struct {
	SourceKind   SourceKind
	SourceTier   SourceTier
	InfoType     InfoType
	Content      string
	Credibility  float64
	Author       string
	Followers    int
	Engagement   int
	Timestamp    time.Time
	HeadlineOnly bool
}

// SignalTag es la combinación (tier, info_type) que el LM asoció a una señal
// usada en su estimación. Alimenta el signal tracker y el paso 2 del pipeline
// de ajuste.
type SignalTag struct {
	SourceTier SourceTier `json:"source_tier"`
	InfoType   InfoType   `json:"info_type"`
	Summary    string     `json:"content_summary,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitempty"`
}
