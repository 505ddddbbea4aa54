package planner

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"uxy/services/appconfig"
	"uxy/services/blueprint"
	"uxy/services/changecontrol"
)

func deployedBlueprint() *blueprint.Blueprint {
	return &blueprint.Blueprint{
		AppName:         "demo-bot",
		DeploymentCount: 3,
		Checksums:       map[string]string{"uxy.json": "old", "src/handler.py": "h1"},
		Description:     "A demo bot",
		ChatbotMenu: []any{
			map[string]any{"locale": "default", "composer_input_disabled": false},
		},
		ChatbotURLWhitelist: []string{"https://example.com"},
	}
}

func matchingConfig() *appconfig.Config {
	return &appconfig.Config{
		Name:        "demo-bot",
		Description: "A demo bot",
		Chatbot: appconfig.ChatbotConfig{
			URLsToWhiteList: []string{"https://example.com"},
			EnableMenu:      true,
			PersistentMenu: []any{
				map[string]any{"locale": "default", "composer_input_disabled": false},
			},
		},
	}
}

func sentinelChanged() changecontrol.Decision {
	return changecontrol.Decision{
		Changed:      true,
		Fingerprints: changecontrol.Fingerprints{"uxy.json": "new", "src/handler.py": "h1"},
	}
}

func TestPlan(t *testing.T) {
	tests := []struct {
		name     string
		bp       func() *blueprint.Blueprint
		cfg      func() *appconfig.Config
		decision changecontrol.Decision
		want     []UpdateAction
	}{
		{
			name: "first deployment initializes every facet in order",
			bp: func() *blueprint.Blueprint {
				bp := deployedBlueprint()
				bp.DeploymentCount = 0
				return bp
			},
			cfg:      matchingConfig,
			decision: sentinelChanged(),
			want:     []UpdateAction{InitGreeting, InitMenu, InitDescription, InitURLWhitelist},
		},
		{
			name: "first deployment ignores the sentinel",
			bp: func() *blueprint.Blueprint {
				bp := deployedBlueprint()
				bp.DeploymentCount = 0
				return bp
			},
			cfg: matchingConfig,
			decision: changecontrol.Decision{
				Changed:      true,
				Fingerprints: changecontrol.Fingerprints{"uxy.json": "old", "src/handler.py": "h2"},
			},
			want: []UpdateAction{InitGreeting, InitMenu, InitDescription, InitURLWhitelist},
		},
		{
			name:     "nothing changed",
			bp:       deployedBlueprint,
			cfg:      matchingConfig,
			decision: changecontrol.Decision{Fingerprints: changecontrol.Fingerprints{"uxy.json": "new"}},
			want:     nil,
		},
		{
			name: "source changed but sentinel did not",
			bp:   deployedBlueprint,
			cfg: func() *appconfig.Config {
				cfg := matchingConfig()
				cfg.Description = "different"
				return cfg
			},
			decision: changecontrol.Decision{
				Changed:      true,
				Fingerprints: changecontrol.Fingerprints{"uxy.json": "old", "src/handler.py": "h2"},
			},
			want: nil,
		},
		{
			name: "only the menu differs",
			bp:   deployedBlueprint,
			cfg: func() *appconfig.Config {
				cfg := matchingConfig()
				cfg.Chatbot.PersistentMenu = []any{map[string]any{"locale": "default", "composer_input_disabled": true}}
				return cfg
			},
			decision: sentinelChanged(),
			want:     []UpdateAction{InitMenu},
		},
		{
			name: "only the whitelist differs",
			bp:   deployedBlueprint,
			cfg: func() *appconfig.Config {
				cfg := matchingConfig()
				cfg.Chatbot.URLsToWhiteList = []string{"https://example.com", "https://example.org"}
				return cfg
			},
			decision: sentinelChanged(),
			want:     []UpdateAction{InitURLWhitelist},
		},
		{
			name: "only the description differs",
			bp:   deployedBlueprint,
			cfg: func() *appconfig.Config {
				cfg := matchingConfig()
				cfg.Description = "A friendlier demo bot"
				return cfg
			},
			decision: sentinelChanged(),
			want:     []UpdateAction{InitDescription},
		},
		{
			name: "every field differs but the greeting is never re-pushed",
			bp:   deployedBlueprint,
			cfg: func() *appconfig.Config {
				cfg := matchingConfig()
				cfg.Description = "new description"
				cfg.Chatbot.URLsToWhiteList = nil
				cfg.Chatbot.PersistentMenu = nil
				return cfg
			},
			decision: sentinelChanged(),
			want:     []UpdateAction{InitMenu, InitURLWhitelist, InitDescription},
		},
		{
			name: "sentinel missing from stored checksums",
			bp: func() *blueprint.Blueprint {
				bp := deployedBlueprint()
				delete(bp.Checksums, "uxy.json")
				return bp
			},
			cfg:      matchingConfig,
			decision: sentinelChanged(),
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(tt.bp(), tt.cfg(), tt.decision)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("Plan() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPlanNumbersFromYAMLMatchJSON(t *testing.T) {
	bp := deployedBlueprint()
	bp.ChatbotMenu = []any{map[string]any{"locale": "default", "size": 2}}

	cfg := matchingConfig()
	cfg.Chatbot.PersistentMenu = []any{map[string]any{"locale": "default", "size": float64(2)}}

	if got := Plan(bp, cfg, sentinelChanged()); len(got) != 0 {
		t.Fatalf("Plan() = %v, want no actions", got)
	}
}

func TestActionString(t *testing.T) {
	if got := InitURLWhitelist.String(); got != "url_whitelist" {
		t.Fatalf("String() = %q", got)
	}
	if got := UpdateAction(99).String(); got != "UpdateAction(99)" {
		t.Fatalf("String() = %q", got)
	}
}
