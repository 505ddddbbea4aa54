package planner

import (
	"bytes"
	"encoding/json"
	"slices"

	"uxy/services/appconfig"
	"uxy/services/blueprint"
	"uxy/services/changecontrol"
)

// Plan decides which chat-platform facets must be pushed for this deployment.
// It has no side effects; guards such as an empty whitelist are applied when
// the actions run, not here.
func Plan(bp *blueprint.Blueprint, cfg *appconfig.Config, decision changecontrol.Decision) []UpdateAction {
	if !decision.Changed || cfg == nil {
		return nil
	}

	if bp.FirstDeployment() {
		return slices.Clone(FirstDeploymentActions)
	}

	if decision.Fingerprints[changecontrol.SentinelPath] == bp.Checksums[changecontrol.SentinelPath] {
		return nil
	}

	// The greeting is set once on the first deployment and never re-pushed.
	var actions []UpdateAction
	if !sameJSON(cfg.Chatbot.PersistentMenu, bp.ChatbotMenu) {
		actions = append(actions, InitMenu)
	}
	if !slices.Equal(normalize(cfg.Chatbot.URLsToWhiteList), normalize(bp.ChatbotURLWhitelist)) {
		actions = append(actions, InitURLWhitelist)
	}
	if cfg.Description != bp.Description {
		actions = append(actions, InitDescription)
	}
	return actions
}

// sameJSON compares two decoded documents by their canonical JSON encoding,
// so values read back from YAML or JSON stores compare equal.
func sameJSON(a, b any) bool {
	left, errA := json.Marshal(a)
	right, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(left, right)
}

func normalize(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}
