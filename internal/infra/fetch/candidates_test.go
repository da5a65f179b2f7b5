package fetch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuildCandidates(t *testing.T) {
	tests := []struct {
		name string
		cfg  CandidateConfig
		want []string
	}{
		{
			name: "primary first then fallbacks",
			cfg: CandidateConfig{
				Primary:   "https://api.example.com/",
				Fallbacks: []string{"https://b.example.com", "https://c.example.com"},
			},
			want: []string{"https://api.example.com", "https://b.example.com", "https://c.example.com"},
		},
		{
			name: "duplicates removed",
			cfg: CandidateConfig{
				Primary:   "https://a.example.com",
				Fallbacks: []string{"https://a.example.com/", "https://b.example.com", " https://b.example.com "},
			},
			want: []string{"https://a.example.com", "https://b.example.com"},
		},
		{
			name: "broken primary moved behind known-good",
			cfg: CandidateConfig{
				Primary:   "https://dead.example.com",
				Fallbacks: []string{"https://b.example.com"},
				Broken:    []string{"https://dead.example.com"},
			},
			want: []string{"https://b.example.com", "https://dead.example.com"},
		},
		{
			name: "broken primary kept when nothing else",
			cfg: CandidateConfig{
				Primary: "https://dead.example.com",
				Broken:  []string{"https://dead.example.com"},
			},
			want: []string{"https://dead.example.com"},
		},
		{
			name: "broken fallbacks dropped",
			cfg: CandidateConfig{
				Primary:   "https://a.example.com",
				Fallbacks: []string{"https://old.example.com", "https://b.example.com"},
				Broken:    []string{"https://old.example.com"},
			},
			want: []string{"https://a.example.com", "https://b.example.com"},
		},
		{
			name: "no primary",
			cfg: CandidateConfig{
				Fallbacks: []string{"https://b.example.com"},
			},
			want: []string{"https://b.example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildCandidates(tt.cfg)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("BuildCandidates mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
