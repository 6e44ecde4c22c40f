// Package simfeed generates a synthetic campaign and serves it through the
// same HTTP surface the feed adapter consumes, so the bot can be driven end
// to end without the real platform.
package simfeed

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"
	"time"
)

// User is a synthetic account.
type User struct {
	FID      int64
	Username string
}

// Cast is a synthetic post or reply.
type Cast struct {
	Hash      string
	Author    User
	Text      string
	Likes     int64
	Timestamp time.Time
	Parent    string // parent hash for replies
}

// Dataset is one generated campaign.
type Dataset struct {
	Config   Config
	Users    []User
	Posts    []Cast // newest first
	Mentions []Cast // newest first

	byHash map[string]Cast
}

// Engagement tiers: most posts are ordinary, a few go viral.
const (
	tierOrdinary = iota
	tierGood
	tierQuiet
	tierViral
	tierCount
)

var topics = []string{
	"a pixel art mural",
	"an onchain poem",
	"a tiny synth loop",
	"a zine about L2s",
	"a generative quilt",
	"a frame for my coffee shop",
	"a mini game about gas",
	"a photo series of murals",
}

// Generate builds a dataset from cfg. The same config always yields the
// same dataset.
func Generate(cfg Config) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	ds := &Dataset{Config: cfg, byHash: make(map[string]Cast)}

	ds.Users = make([]User, cfg.Users)
	for i := range ds.Users {
		ds.Users[i] = User{FID: int64(1000 + i), Username: fmt.Sprintf("creator-%03d", i)}
	}

	tag := strings.TrimSpace(strings.TrimRight(cfg.Tag, ".…"))
	ds.Posts = make([]Cast, cfg.Posts)
	for i := range ds.Posts {
		topic := topics[rng.IntN(len(topics))]
		text := "gm, working on " + topic
		if rng.Float64() < cfg.Tagged {
			text = tag + " " + topic
		}
		ds.Posts[i] = Cast{
			Hash:      ds.newHash(rng, "0x"),
			Author:    ds.Users[rng.IntN(len(ds.Users))],
			Text:      text,
			Likes:     likes(rng),
			Timestamp: cfg.Now.Add(-time.Duration(rng.Int64N(int64(cfg.Window)))).Truncate(time.Second),
		}
		ds.byHash[ds.Posts[i].Hash] = ds.Posts[i]
	}

	ds.Mentions = make([]Cast, cfg.Mentions)
	for i := range ds.Mentions {
		parent := ds.Posts[rng.IntN(len(ds.Posts))]
		gap := cfg.Now.Sub(parent.Timestamp)
		at := parent.Timestamp
		if gap > 0 {
			at = at.Add(time.Duration(rng.Int64N(int64(gap)))).Truncate(time.Second)
		}
		ds.Mentions[i] = Cast{
			Hash:      ds.newHash(rng, "0xm"),
			Author:    ds.Users[rng.IntN(len(ds.Users))],
			Text:      fmt.Sprintf("@%s nominating @%s for this one", cfg.BotHandle, parent.Author.Username),
			Timestamp: at,
			Parent:    parent.Hash,
		}
		ds.byHash[ds.Mentions[i].Hash] = ds.Mentions[i]
	}

	newestFirst(ds.Posts)
	newestFirst(ds.Mentions)
	return ds, nil
}

// Cast returns the post or reply with the given hash.
func (d *Dataset) Cast(hash string) (Cast, bool) {
	c, ok := d.byHash[hash]
	return c, ok
}

// User returns the account with the given id.
func (d *Dataset) User(fid int64) (User, bool) {
	for _, u := range d.Users {
		if u.FID == fid {
			return u, true
		}
	}
	return User{}, false
}

func (d *Dataset) newHash(rng *rand.Rand, prefix string) string {
	for {
		h := fmt.Sprintf("%s%016x", prefix, rng.Uint64())
		if _, taken := d.byHash[h]; !taken {
			return h
		}
	}
}

func likes(rng *rand.Rand) int64 {
	switch rng.IntN(tierCount) {
	case tierGood:
		return 30 + rng.Int64N(70)
	case tierQuiet:
		return rng.Int64N(3)
	case tierViral:
		if rng.IntN(4) == 0 {
			return 150 + rng.Int64N(350)
		}
		return 10 + rng.Int64N(20)
	default:
		return 3 + rng.Int64N(27)
	}
}

func newestFirst(casts []Cast) {
	sort.SliceStable(casts, func(i, j int) bool {
		if !casts[i].Timestamp.Equal(casts[j].Timestamp) {
			return casts[i].Timestamp.After(casts[j].Timestamp)
		}
		return casts[i].Hash < casts[j].Hash
	})
}
