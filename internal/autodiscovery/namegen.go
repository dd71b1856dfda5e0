package autodiscovery

import (
	"fmt"
	"math/rand"
)

// wordlist is the small built-in vocabulary two-word pipeline names are
// drawn from, per spec.md §4.7.
var wordlist = []string{
	"amber", "birch", "cedar", "delta", "ember", "flint", "glade", "heron",
	"ivory", "joule", "kelp", "lumen", "maple", "nomad", "opal", "plume",
	"quartz", "raven", "spruce", "talon", "umber", "vireo", "willow", "zephyr",
}

// maxCollisions is how many generated names are tried before a random
// numeric suffix is appended, per spec.md §4.7.
const maxCollisions = 3

// generateName returns a two-hyphen-joined-word name not present in taken,
// suffixing a random 0-999 integer if maxCollisions consecutive attempts
// collide.
func generateName(taken map[string]bool) string {
	for i := 0; i < maxCollisions; i++ {
		name := fmt.Sprintf("%s-%s", randWord(), randWord())
		if !taken[name] {
			return name
		}
	}
	return fmt.Sprintf("%s-%s-%d", randWord(), randWord(), rand.Intn(1000))
}

func randWord() string { return wordlist[rand.Intn(len(wordlist))] }
