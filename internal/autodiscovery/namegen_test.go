package autodiscovery

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateName_AvoidsTakenNames(t *testing.T) {
	taken := map[string]bool{}
	for i := 0; i < 50; i++ {
		name := generateName(taken)
		assert.False(t, taken[name], "generated a name already taken: %s", name)
		taken[name] = true
	}
}

func TestGenerateName_TwoWordsHyphenJoined(t *testing.T) {
	name := generateName(map[string]bool{})
	parts := strings.Split(name, "-")
	assert.GreaterOrEqual(t, len(parts), 2)
}

func TestGenerateName_FallsBackToSuffixOnExhaustedCollisions(t *testing.T) {
	taken := map[string]bool{}
	for _, a := range wordlist {
		for _, b := range wordlist {
			taken[a+"-"+b] = true
		}
	}
	name := generateName(taken)
	parts := strings.Split(name, "-")
	assert.Len(t, parts, 3)
}
