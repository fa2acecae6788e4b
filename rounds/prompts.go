// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package rounds

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrEmptyPool = errors.New("prompt pool is empty")

// DefaultThemes is used when no prompt file is configured.
var DefaultThemes = []string{
	"A Dragon's Hoard",
	"Lighthouse at Dusk",
	"Your Breakfast",
	"A Cat in a Box",
	"Underwater City",
	"Haunted House",
	"Favourite Childhood Toy",
	"Robot Gardener",
	"Rainy Window",
	"A Tiny Planet",
	"Street Market",
	"Mountain Cabin",
	"Space Picnic",
	"Self Portrait as a Fruit",
	"Treehouse",
	"Night Train",
	"Wizard's Desk",
	"A Day at the Beach",
	"Mushroom Village",
	"The View from Your Window",
	"Giant Snail",
	"Campfire Story",
	"Paper Boat",
	"Deep Sea Creature",
	"Knight on a Bicycle",
	"Cloud Animals",
	"Abandoned Carnival",
	"Bakery Counter",
	"Winter Fox",
	"Time Machine",
}

// Pool is an immutable list of themes.
type Pool struct {
	themes []string
}

// NewPool trims and de-duplicates themes. An empty result is an error.
func NewPool(themes []string) (*Pool, error) {
	seen := make(map[string]bool, len(themes))
	cleaned := make([]string, 0, len(themes))
	for _, t := range themes {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		cleaned = append(cleaned, t)
	}
	if len(cleaned) == 0 {
		return nil, ErrEmptyPool
	}
	return &Pool{themes: cleaned}, nil
}

type poolFile struct {
	Themes []string `yaml:"themes"`
}

// LoadPool reads a YAML prompt file of the form
//
//	themes:
//	  - Lighthouse at Dusk
//	  - Robot Gardener
//
// An empty path returns the built-in pool.
func LoadPool(path string) (*Pool, error) {
	if path == "" {
		return NewPool(DefaultThemes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}

	var f poolFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", path, err)
	}

	pool, err := NewPool(f.Themes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return pool, nil
}

// Pick returns a uniformly random theme. Repeats are allowed.
func (p *Pool) Pick() string {
	return p.themes[rand.IntN(len(p.themes))]
}

func (p *Pool) Len() int {
	return len(p.themes)
}

// Contains reports whether theme is in the pool.
func (p *Pool) Contains(theme string) bool {
	for _, t := range p.themes {
		if t == theme {
			return true
		}
	}
	return false
}
