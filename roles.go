package main

import (
	_ "embed"
	"fmt"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed roles.yaml
var rolesYAML []byte

// Faction is the team a role plays for.
type Faction string

const (
	FactionVillage    Faction = "Village"
	FactionWerewolves Faction = "Werewolves"
	FactionVampires   Faction = "Vampires"
	FactionNeutral    Faction = "Neutral"
)

func (f Faction) Valid() bool {
	switch f {
	case FactionVillage, FactionWerewolves, FactionVampires, FactionNeutral:
		return true
	}
	return false
}

// ActionKind is what a role does when it wakes.
type ActionKind string

const (
	ActionNone      ActionKind = "none"
	ActionKill      ActionKind = "kill"
	ActionCheck     ActionKind = "check"
	ActionSave      ActionKind = "save"
	ActionSilence   ActionKind = "silence"
	ActionLink      ActionKind = "link"
	ActionBlock     ActionKind = "block"
	ActionRedirect  ActionKind = "redirect"
	ActionStealVote ActionKind = "steal_vote"
	ActionProtect   ActionKind = "protect"
)

// PackFamily groups roles that wake together and share one kill per night.
type PackFamily string

const (
	PackNone       PackFamily = ""
	PackWerewolves PackFamily = "werewolves"
	PackVampires   PackFamily = "vampires"
)

// AttackType classifies a kill so protections can match against it.
type AttackType string

const (
	AttackWerewolf AttackType = "werewolf"
	AttackVampire  AttackType = "vampire"
	AttackPhysical AttackType = "physical"
	AttackMagical  AttackType = "magical"
)

// ProtectionKind is the shield a protect action grants.
type ProtectionKind string

const (
	ProtectPhysical     ProtectionKind = "physical"
	ProtectWerewolfOnly ProtectionKind = "werewolf-only"
)

// Blocks reports whether this protection negates the given attack.
func (p ProtectionKind) Blocks(a AttackType) bool {
	switch p {
	case ProtectPhysical:
		return a == AttackWerewolf || a == AttackVampire || a == AttackPhysical
	case ProtectWerewolfOnly:
		return a == AttackWerewolf
	}
	return false
}

// Trait tags a role with a passive rule the engine honours.
type Trait string

const (
	TraitNightImmune    Trait = "night_immune"    // Miner
	TraitDetersPack     Trait = "deters_pack"     // Leper
	TraitShield         Trait = "shield"          // Hero
	TraitDogs           Trait = "dogs"            // Dog Breeder
	TraitExtraLife      Trait = "extra_life"      // Old Man
	TraitCountdown      Trait = "countdown"       // Innkeeper
	TraitBanishmentWard Trait = "banishment_ward" // Lawyer
)

// Role ids the win evaluator and day voting look up directly.
const (
	RoleWerewolf  = "werewolf"
	RoleWhiteWolf = "white_wolf"
	RoleNosferatu = "nosferatu"
	RoleAssassin  = "assassin"
	RoleJester    = "jester"
	RoleVillager  = "villager"
	RoleSeer      = "seer"
	RoleMayor     = "mayor"
)

// Role is an immutable catalog entry. Players share Role values.
type Role struct {
	ID          string         `yaml:"id" json:"id"`
	Name        string         `yaml:"name" json:"name"`
	Faction     Faction        `yaml:"faction" json:"faction"`
	IsEvil      bool           `yaml:"evil" json:"is_evil"`
	WakeOrder   int            `yaml:"wake_order" json:"wake_order,omitempty"`
	NightAction ActionKind     `yaml:"night_action" json:"night_action"`
	Description string         `yaml:"description" json:"description"`
	IsPassive   bool           `yaml:"passive" json:"is_passive,omitempty"`
	UsageLimit  int            `yaml:"usage_limit" json:"usage_limit,omitempty"`
	Pack        PackFamily     `yaml:"pack" json:"pack,omitempty"`
	Attack      AttackType     `yaml:"attack" json:"attack,omitempty"`
	Protection  ProtectionKind `yaml:"protection" json:"protection,omitempty"`
	Traits      []Trait        `yaml:"traits" json:"traits,omitempty"`
}

// Wakes reports whether the role is called at night.
func (r Role) Wakes() bool { return r.WakeOrder > 0 }

func (r Role) HasTrait(t Trait) bool { return slices.Contains(r.Traits, t) }

// AttackKind returns the attack type of this role's kill, physical when unset.
func (r Role) AttackKind() AttackType {
	if r.Attack == "" {
		return AttackPhysical
	}
	return r.Attack
}

// Registry is the read-only role catalog.
type Registry struct {
	roles []Role
	byID  map[string]int
}

// LoadRegistry parses and validates a YAML role catalog.
func LoadRegistry(data []byte) (*Registry, error) {
	var roles []Role
	if err := yaml.Unmarshal(data, &roles); err != nil {
		return nil, fmt.Errorf("parse role catalog: %w", err)
	}

	reg := &Registry{roles: roles, byID: make(map[string]int, len(roles))}
	for i, r := range roles {
		if err := validateRole(r); err != nil {
			return nil, fmt.Errorf("role %d (%s): %w", i, r.ID, err)
		}
		if _, dup := reg.byID[r.ID]; dup {
			return nil, fmt.Errorf("role %q defined twice", r.ID)
		}
		reg.byID[r.ID] = i
	}
	return reg, nil
}

func validateRole(r Role) error {
	if r.ID == "" || r.Name == "" {
		return fmt.Errorf("id and name are required")
	}
	if !r.Faction.Valid() {
		return fmt.Errorf("unknown faction %q", r.Faction)
	}
	switch r.NightAction {
	case ActionNone, ActionKill, ActionCheck, ActionSave, ActionSilence,
		ActionLink, ActionBlock, ActionRedirect, ActionStealVote, ActionProtect:
	default:
		return fmt.Errorf("unknown night action %q", r.NightAction)
	}
	switch r.Pack {
	case PackNone, PackWerewolves, PackVampires:
	default:
		return fmt.Errorf("unknown pack %q", r.Pack)
	}
	switch r.Attack {
	case "", AttackWerewolf, AttackVampire, AttackPhysical, AttackMagical:
	default:
		return fmt.Errorf("unknown attack type %q", r.Attack)
	}
	switch r.Protection {
	case "", ProtectPhysical, ProtectWerewolfOnly:
	default:
		return fmt.Errorf("unknown protection %q", r.Protection)
	}
	if r.NightAction == ActionProtect && r.Protection == "" {
		return fmt.Errorf("protect action without protection kind")
	}
	if r.WakeOrder < 0 || r.UsageLimit < 0 {
		return fmt.Errorf("wake order and usage limit must not be negative")
	}
	return nil
}

var defaultRegistry *Registry

func init() {
	reg, err := LoadRegistry(rolesYAML)
	if err != nil {
		panic(err)
	}
	defaultRegistry = reg
}

// DefaultRegistry returns the built-in catalog.
func DefaultRegistry() *Registry { return defaultRegistry }

// Role looks up a role by id.
func (reg *Registry) Role(id string) (Role, bool) {
	i, ok := reg.byID[id]
	if !ok {
		return Role{}, false
	}
	return reg.roles[i], true
}

// MustRole is Role for ids known to exist; it panics otherwise.
func (reg *Registry) MustRole(id string) Role {
	r, ok := reg.Role(id)
	if !ok {
		panic("unknown role " + id)
	}
	return r
}

// All returns the catalog in file order.
func (reg *Registry) All() []Role {
	return slices.Clone(reg.roles)
}

func (reg *Registry) ByFaction(f Faction) []Role {
	var out []Role
	for _, r := range reg.roles {
		if strings.EqualFold(string(r.Faction), string(f)) {
			out = append(out, r)
		}
	}
	return out
}

// ByWakeOrder returns the waking roles in ascending wake order.
func (reg *Registry) ByWakeOrder() []Role {
	var out []Role
	for _, r := range reg.roles {
		if r.Wakes() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WakeOrder < out[j].WakeOrder })
	return out
}
