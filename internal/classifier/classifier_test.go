package classifier

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/predictor/internal/domain"
)

const testRegistry = `
s1:
  handles: [reuters, "@AP"]
  domains: [reuters.com]
s2:
  handles: [nytimes]
  domains: [nytimes.com, coindesk.com]
s3:
  handles: [politico]
  domains: [politico.com]
expert_bio_keywords:
  - economist
  - analyst
  - phd
`

func loadTestRegistry(t *testing.T) *Registry {
	t.Helper()
	path := filepath.Join(t.TempDir(), "known_sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testRegistry), 0o644))
	r, err := LoadRegistry(path)
	require.NoError(t, err)
	return r
}

func TestClassify_KnownHandleCaseInsensitive(t *testing.T) {
	r := loadTestRegistry(t)

	assert.Equal(t, domain.TierS1, r.Classify(Source{Handle: "@Reuters"}))
	assert.Equal(t, domain.TierS1, r.Classify(Source{Handle: "ap"}))
	assert.Equal(t, domain.TierS2, r.Classify(Source{Handle: "NYTimes"}))
	assert.Equal(t, domain.TierS3, r.Classify(Source{Handle: "politico"}))
}

func TestClassify_DomainSuffixMatch(t *testing.T) {
	r := loadTestRegistry(t)

	assert.Equal(t, domain.TierS1, r.Classify(Source{Domain: "reuters.com"}))
	assert.Equal(t, domain.TierS1, r.Classify(Source{Domain: "news.reuters.com"}))
	assert.Equal(t, domain.TierS2, r.Classify(Source{Domain: "www.coindesk.com"}))
	// Un dominio que solo contiene el registrado como substring no casa.
	assert.Equal(t, domain.TierS6, r.Classify(Source{Domain: "fakereuters.com"}))
}

func TestClassify_VerifiedExpertIsS4(t *testing.T) {
	r := loadTestRegistry(t)

	src := Source{
		Handle:    "somequant",
		Verified:  true,
		Followers: 120000,
		Bio:       "Macro economist / father / views my own",
	}
	assert.Equal(t, domain.TierS4, r.Classify(src))

	// Sin verificación, o con pocos seguidores, o sin bio de experto: S6.
	noVerify := src
	noVerify.Verified = false
	assert.Equal(t, domain.TierS6, r.Classify(noVerify))

	few := src
	few.Followers = 4000
	assert.Equal(t, domain.TierS6, r.Classify(few))

	plainBio := src
	plainBio.Bio = "I like turtles"
	assert.Equal(t, domain.TierS6, r.Classify(plainBio))
}

func TestClassify_MarketDataIsS5(t *testing.T) {
	r := loadTestRegistry(t)

	src := Source{Kind: domain.SourceMarketData, Handle: "reuters"}
	assert.Equal(t, domain.TierS5, r.Classify(src))
}

func TestClassify_UnknownFallsBackToS6(t *testing.T) {
	r := loadTestRegistry(t)

	assert.Equal(t, domain.TierS6, r.Classify(Source{Handle: "randomuser123"}))
	assert.Equal(t, domain.TierS6, r.Classify(Source{}))
}
