package models

import (
	"math"
	"strconv"
	"time"
)

// Well known collection slugs
const (
	CollectionMemes   = "memes"
	CollectionTags    = "tags"
	CollectionObjects = "objects"
	CollectionMoods   = "moods"
)

// Data keys maintained by the counter functions
const (
	KeyUsageCount    = "usageCount"
	KeyTrendingScore = "trendingScore"
)

// Meme is the typed view of a document in the memes collection
type Meme struct {
	ID            string    `json:"id"`
	TitleEN       string    `json:"title_en"`
	TitleVI       string    `json:"title_vi"`
	DescriptionEN string    `json:"description_en"`
	DescriptionVI string    `json:"description_vi"`
	Type          string    `json:"type"`
	Tags          []string  `json:"tags"`
	Objects       []string  `json:"objects"`
	Moods         []string  `json:"moods"`
	FileID        string    `json:"fileId"`
	Platform      string    `json:"platform"`
	UsageCount    int64     `json:"usageCount"`
	TrendingScore float64   `json:"trendingScore"`
	CreatedAt     time.Time `json:"createdAt"`
}

// MemeFromDocument reads the meme fields out of a document's data bag
func MemeFromDocument(doc *Document) Meme {
	d := doc.Data
	return Meme{
		ID:            doc.ID,
		TitleEN:       String(d["title_en"]),
		TitleVI:       String(d["title_vi"]),
		DescriptionEN: String(d["description_en"]),
		DescriptionVI: String(d["description_vi"]),
		Type:          String(d["type"]),
		Tags:          Strings(d["tags"]),
		Objects:       Strings(d["objects"]),
		Moods:         Strings(d["moods"]),
		FileID:        String(d["fileId"]),
		Platform:      String(d["platform"]),
		UsageCount:    Int64(d[KeyUsageCount]),
		TrendingScore: Float64(d[KeyTrendingScore]),
		CreatedAt:     doc.CreatedAt,
	}
}

// EntityRefs maps each tracked collection to the ids the meme references
func (m Meme) EntityRefs() map[string][]string {
	return map[string][]string{
		CollectionTags:    m.Tags,
		CollectionObjects: m.Objects,
		CollectionMoods:   m.Moods,
	}
}

// String reads a string value, "" otherwise
func String(v interface{}) string {
	s, _ := v.(string)
	return s
}

// Strings reads a JSON array of strings, skipping non-string items
func Strings(v interface{}) []string {
	switch items := v.(type) {
	case []string:
		return items
	case []interface{}:
		out := make([]string, 0, len(items))
		for _, item := range items {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Int64 reads a JSON number (or numeric string) as int64
func Int64(v interface{}) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int:
		return int64(n)
	case int64:
		return n
	case uint64:
		return int64(n)
	case string:
		i, _ := strconv.ParseInt(n, 10, 64)
		return i
	}
	return 0
}

// Float64 reads a JSON number (or numeric string) as float64
func Float64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	}
	return 0
}
