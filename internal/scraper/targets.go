package scraper

import "context"

// TargetResolver maps a (type, category) pair to the URL to extract from.
// The real lookup lives outside this core; callers inject theirs.
type TargetResolver interface {
	Resolve(ctx context.Context, recordType, category string) (string, error)
}

// StaticTargets is a fixed in-memory resolver with a default URL for pairs
// it does not know.
type StaticTargets struct {
	targets    map[string]string
	defaultURL string
}

func NewStaticTargets(defaultURL string) *StaticTargets {
	return &StaticTargets{
		targets:    make(map[string]string),
		defaultURL: defaultURL,
	}
}

// Set registers a target URL for a (type, category) pair.
func (t *StaticTargets) Set(recordType, category, url string) {
	t.targets[recordType+"/"+category] = url
}

func (t *StaticTargets) Resolve(_ context.Context, recordType, category string) (string, error) {
	if url, ok := t.targets[recordType+"/"+category]; ok {
		return url, nil
	}
	return t.defaultURL, nil
}
