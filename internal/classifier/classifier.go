// Package classifier asigna tiers de credibilidad (S1-S6) a las fuentes
// de señales a partir de un registro YAML de fuentes conocidas. El LM nunca
// decide el tier.
package classifier

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/predictor/internal/domain"
)

const (
	s4MinFollowers = 50000
)

// Source son los metadatos crudos de la procedencia de una señal, antes de
// normalizarse en domain.Signal.
type Source struct {
	Kind      domain.SourceKind
	Handle    string // handle social, con o sin @
	Domain    string // host del enlace o del feed
	Verified  bool
	Followers int
	Bio       string
}

// Registry contiene las fuentes conocidas cargadas desde YAML.
type Registry struct {
	handles  map[string]domain.SourceTier
	domains  map[string]domain.SourceTier
	bioWords []string
}

type registryFile struct {
	S1 tierEntry `yaml:"s1"`
	S2 tierEntry `yaml:"s2"`
	S3 tierEntry `yaml:"s3"`

	ExpertBioKeywords []string `yaml:"expert_bio_keywords"`
}

type tierEntry struct {
	Handles []string `yaml:"handles"`
	Domains []string `yaml:"domains"`
}

// LoadRegistry lee el registro de fuentes desde el archivo YAML dado.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("classifier.LoadRegistry: read %q: %w", path, err)
	}

	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("classifier.LoadRegistry: parse YAML: %w", err)
	}

	r := &Registry{
		handles: make(map[string]domain.SourceTier),
		domains: make(map[string]domain.SourceTier),
	}
	r.add(f.S1, domain.TierS1)
	r.add(f.S2, domain.TierS2)
	r.add(f.S3, domain.TierS3)
	for _, w := range f.ExpertBioKeywords {
		r.bioWords = append(r.bioWords, strings.ToLower(strings.TrimSpace(w)))
	}
	return r, nil
}

func (r *Registry) add(e tierEntry, tier domain.SourceTier) {
	for _, h := range e.Handles {
		r.handles[normalizeHandle(h)] = tier
	}
	for _, d := range e.Domains {
		r.domains[strings.ToLower(strings.TrimSpace(d))] = tier
	}
}

// Classify devuelve el tier de la fuente. El orden importa: registro de
// handles y dominios primero, después la regla de experto verificado (S4),
// datos de mercado S5 y fallback S6.
func (r *Registry) Classify(src Source) domain.SourceTier {
	if src.Kind == domain.SourceMarketData {
		return domain.TierS5
	}

	if h := normalizeHandle(src.Handle); h != "" {
		if tier, ok := r.handles[h]; ok {
			return tier
		}
	}
	if d := strings.ToLower(strings.TrimSpace(src.Domain)); d != "" {
		if tier, ok := r.matchDomain(d); ok {
			return tier
		}
	}

	if src.Verified && src.Followers >= s4MinFollowers && r.hasExpertBio(src.Bio) {
		return domain.TierS4
	}
	return domain.TierS6
}

// matchDomain compara por sufijo: un subdominio de un dominio registrado
// hereda su tier.
func (r *Registry) matchDomain(host string) (domain.SourceTier, bool) {
	if tier, ok := r.domains[host]; ok {
		return tier, true
	}
	for d, tier := range r.domains {
		if strings.HasSuffix(host, "."+d) {
			return tier, true
		}
	}
	return "", false
}

// hasExpertBio busca keywords de analista en la bio. Los separadores
// habituales de bios (/, |, coma) se tratan como límites de token.
func (r *Registry) hasExpertBio(bio string) bool {
	if bio == "" {
		return false
	}
	lower := strings.ToLower(bio)
	segments := strings.FieldsFunc(lower, func(c rune) bool {
		return c == '/' || c == '|' || c == ','
	})
	for _, seg := range segments {
		seg = strings.TrimSpace(seg)
		for _, w := range r.bioWords {
			if strings.Contains(seg, w) {
				return true
			}
		}
	}
	return false
}

func normalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}
