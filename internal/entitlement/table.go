// Package entitlement holds the immutable plan-tier entitlement table.
// The table is loaded once at process start; plan redefinition is an
// administrative data-reload, not a runtime mutation.
package entitlement

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	subscriptiondomain "github.com/MNhat168/careerhub/internal/subscription/domain"
	usagedomain "github.com/MNhat168/careerhub/internal/usage/domain"
	"github.com/spf13/viper"
)

// Unlimited marks a quota with no ceiling.
const Unlimited int64 = -1

// Quota is the per-period ceiling for one (tier, action) pair.
type Quota struct {
	Limit     int64
	Unlimited bool
}

// Features are the boolean grants unrelated to counting.
type Features struct {
	CanDirectMessage bool `mapstructure:"can_direct_message"`
	CanFeatureJobs   bool `mapstructure:"can_feature_jobs"`
	PriorityMatching bool `mapstructure:"priority_matching"`
}

type tierEntry struct {
	Quotas   map[string]int64 `mapstructure:"quotas"`
	Features Features         `mapstructure:"features"`
}

// Table maps plan tier and action to a quota. Immutable after construction.
type Table struct {
	quotas   map[subscriptiondomain.Tier]map[usagedomain.Action]int64
	features map[subscriptiondomain.Tier]Features
}

// QuotaFor returns the quota for one tier and action. An action with no
// explicit grant is denied: quota zero, never unlimited.
func (t *Table) QuotaFor(tier subscriptiondomain.Tier, action usagedomain.Action) Quota {
	byAction, ok := t.quotas[tier]
	if !ok {
		byAction = t.quotas[subscriptiondomain.TierFree]
	}
	limit, ok := byAction[action]
	if !ok {
		return Quota{Limit: 0}
	}
	if limit == Unlimited {
		return Quota{Limit: Unlimited, Unlimited: true}
	}
	return Quota{Limit: limit}
}

// FeaturesFor returns the boolean grants for one tier.
func (t *Table) FeaturesFor(tier subscriptiondomain.Tier) Features {
	features, ok := t.features[tier]
	if !ok {
		return t.features[subscriptiondomain.TierFree]
	}
	return features
}

// Default returns the compiled-in entitlement matrix. Enterprise is
// unlimited for every countable action.
func Default() *Table {
	quotas := map[subscriptiondomain.Tier]map[usagedomain.Action]int64{
		subscriptiondomain.TierFree: {
			usagedomain.ActionJobApplication: 5,
			usagedomain.ActionJobPosting:     1,
			usagedomain.ActionCVView:         10,
			usagedomain.ActionDirectMessage:  0,
			usagedomain.ActionAIMatch:        3,
			usagedomain.ActionFeaturedJob:    0,
		},
		subscriptiondomain.TierBasic: {
			usagedomain.ActionJobApplication: 10,
			usagedomain.ActionJobPosting:     5,
			usagedomain.ActionCVView:         50,
			usagedomain.ActionDirectMessage:  25,
			usagedomain.ActionAIMatch:        20,
			usagedomain.ActionFeaturedJob:    1,
		},
		subscriptiondomain.TierPremium: {
			usagedomain.ActionJobApplication: 50,
			usagedomain.ActionJobPosting:     20,
			usagedomain.ActionCVView:         200,
			usagedomain.ActionDirectMessage:  100,
			usagedomain.ActionAIMatch:        100,
			usagedomain.ActionFeaturedJob:    5,
		},
		subscriptiondomain.TierEnterprise: {},
	}
	for _, action := range usagedomain.Actions() {
		quotas[subscriptiondomain.TierEnterprise][action] = Unlimited
	}

	features := map[subscriptiondomain.Tier]Features{
		subscriptiondomain.TierFree:  {},
		subscriptiondomain.TierBasic: {CanDirectMessage: true},
		subscriptiondomain.TierPremium: {
			CanDirectMessage: true,
			CanFeatureJobs:   true,
			PriorityMatching: true,
		},
		subscriptiondomain.TierEnterprise: {
			CanDirectMessage: true,
			CanFeatureJobs:   true,
			PriorityMatching: true,
		},
	}

	return &Table{quotas: quotas, features: features}
}

// Load reads the tier matrix from a YAML file. A missing file falls back
// to the compiled-in defaults; a present but invalid file is an error.
func Load(path string) (*Table, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default(), nil
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("stat entitlements: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType(strings.TrimPrefix(filepath.Ext(path), "."))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read entitlements: %w", err)
	}

	var raw map[string]tierEntry
	if err := v.UnmarshalKey("tiers", &raw); err != nil {
		return nil, fmt.Errorf("parse entitlements: %w", err)
	}
	if len(raw) == 0 {
		return Default(), nil
	}

	table := Default()
	for tierName, entry := range raw {
		tier := subscriptiondomain.Tier(strings.ToLower(strings.TrimSpace(tierName)))
		if !subscriptiondomain.ValidTier(tier) {
			return nil, fmt.Errorf("entitlements: unknown tier %q", tierName)
		}
		if table.quotas[tier] == nil {
			table.quotas[tier] = make(map[usagedomain.Action]int64)
		}
		for actionName, limit := range entry.Quotas {
			action, err := usagedomain.ParseAction(actionName)
			if err != nil {
				return nil, fmt.Errorf("entitlements: tier %q: unknown action %q", tierName, actionName)
			}
			if limit < Unlimited {
				return nil, fmt.Errorf("entitlements: tier %q action %q: negative quota %d", tierName, actionName, limit)
			}
			table.quotas[tier][action] = limit
		}
		table.features[tier] = entry.Features
	}

	// Enterprise unlimited for countable actions is an invariant, not a
	// configuration choice.
	for _, action := range usagedomain.Actions() {
		table.quotas[subscriptiondomain.TierEnterprise][action] = Unlimited
	}

	return table, nil
}
