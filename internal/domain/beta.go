package domain

// beta.go — cuantiles de la distribución Beta via beta incompleta
// regularizada (fracción continua de Lentz) e inversión por bisección.
// Suficiente para los intervalos al 95% de los buckets de calibración;
// α y β aquí nunca bajan de 1.

import "math"

const (
	betaEps     = 1e-10
	betaMaxIter = 200
)

// betaQuantile devuelve x tal que I_x(a, b) = p, con p en (0, 1).
func betaQuantile(p, a, b float64) float64 {
	if p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}

	lo, hi := 0.0, 1.0
	for i := 0; i < betaMaxIter; i++ {
		mid := (lo + hi) / 2
		if regIncompleteBeta(mid, a, b) < p {
			lo = mid
		} else {
			hi = mid
		}
		if hi-lo < betaEps {
			break
		}
	}
	return (lo + hi) / 2
}

// regIncompleteBeta calcula I_x(a, b), la función beta incompleta
// regularizada.
func regIncompleteBeta(x, a, b float64) float64 {
	if x <= 0 {
		return 0
	}
	if x >= 1 {
		return 1
	}

	lgAB, _ := math.Lgamma(a + b)
	lgA, _ := math.Lgamma(a)
	lgB, _ := math.Lgamma(b)
	front := math.Exp(lgAB - lgA - lgB + a*math.Log(x) + b*math.Log(1-x))

	// La fracción continua converge rápido para x < (a+1)/(a+b+2);
	// en caso contrario se usa la simetría I_x(a,b) = 1 - I_{1-x}(b,a).
	if x < (a+1)/(a+b+2) {
		return front * betaContinuedFraction(x, a, b) / a
	}
	return 1 - regIncompleteBeta(1-x, b, a)
}

// betaContinuedFraction evalúa la fracción continua de la beta incompleta
// con el método de Lentz modificado.
func betaContinuedFraction(x, a, b float64) float64 {
	const tiny = 1e-30

	qab := a + b
	qap := a + 1
	qam := a - 1

	c := 1.0
	d := 1 - qab*x/qap
	if math.Abs(d) < tiny {
		d = tiny
	}
	d = 1 / d
	h := d

	for m := 1; m <= betaMaxIter; m++ {
		fm := float64(m)
		m2 := 2 * fm

		// Término par.
		aa := fm * (b - fm) * x / ((qam + m2) * (a + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		h *= d * c

		// Término impar.
		aa = -(a + fm) * (qab + fm) * x / ((a + m2) * (qap + m2))
		d = 1 + aa*d
		if math.Abs(d) < tiny {
			d = tiny
		}
		c = 1 + aa/c
		if math.Abs(c) < tiny {
			c = tiny
		}
		d = 1 / d
		del := d * c
		h *= del

		if math.Abs(del-1) < betaEps {
			break
		}
	}
	return h
}
