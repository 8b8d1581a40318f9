package domain

// CalibrationBucket acumula evidencia Beta(α,β) sobre la precisión del LM
// dentro de un rango fijo de confianza. α cuenta aciertos, β fallos, ambos
// ponderados por recencia; los priors α=β=1 equivalen a cero muestras.
type CalibrationBucket struct {
	Lo    float64
	Hi    float64
	Alpha float64
	Beta  float64
}

// NewCalibrationBucket crea un bucket con priors uniformes.
func NewCalibrationBucket(lo, hi float64) CalibrationBucket {
	return CalibrationBucket{Lo: lo, Hi: hi, Alpha: 1, Beta: 1}
}

// CalibrationRanges son los seis rangos fijos de confianza. El límite
// inferior es inclusivo; el último bucket es cerrado en 1.00.
var CalibrationRanges = [][2]float64{
	{0.50, 0.60},
	{0.60, 0.70},
	{0.70, 0.80},
	{0.80, 0.90},
	{0.90, 0.95},
	{0.95, 1.00},
}

// Midpoint devuelve el punto medio del rango.
func (b CalibrationBucket) Midpoint() float64 {
	return (b.Lo + b.Hi) / 2
}

// ExpectedAccuracy es la media de la posterior Beta.
func (b CalibrationBucket) ExpectedAccuracy() float64 {
	return b.Alpha / (b.Alpha + b.Beta)
}

// SampleCount es el número efectivo de muestras (descuenta los priors).
func (b CalibrationBucket) SampleCount() int {
	return int(b.Alpha + b.Beta - 2)
}

// Uncertainty es la anchura del intervalo central al 95% de Beta(α,β).
func (b CalibrationBucket) Uncertainty() float64 {
	lo := betaQuantile(0.025, b.Alpha, b.Beta)
	hi := betaQuantile(0.975, b.Alpha, b.Beta)
	return hi - lo
}

// Update añade una observación con el peso de recencia dado.
func (b *CalibrationBucket) Update(correct bool, weight float64) {
	if correct {
		b.Alpha += weight
	} else {
		b.Beta += weight
	}
}

// Correction devuelve el delta de confianza que aplica el paso 1 del pipeline
// de ajuste: la desviación de la precisión observada respecto al punto medio,
// escalada por la certeza de la posterior. Cero con menos de 10 muestras.
func (b CalibrationBucket) Correction() float64 {
	if b.SampleCount() < 10 {
		return 0
	}
	certainty := 1 - 2*b.Uncertainty()
	if certainty < 0 {
		certainty = 0
	}
	return (b.ExpectedAccuracy() - b.Midpoint()) * certainty
}

// Contains indica si la confianza cae dentro del rango del bucket.
// El último bucket incluye su límite superior (1.00).
func (b CalibrationBucket) Contains(confidence float64) bool {
	if b.Hi >= 1.0 {
		return confidence >= b.Lo && confidence <= b.Hi
	}
	return confidence >= b.Lo && confidence < b.Hi
}
