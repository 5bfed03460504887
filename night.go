package main

import (
	"fmt"
	"time"
)

// NightActionRecord is one unit's submitted action for the current night.
type NightActionRecord struct {
	RoleID         string     `json:"role_id" db:"role_id"`
	ActorID        string     `json:"actor_id" db:"actor_id"`
	TargetID       string     `json:"target_id" db:"target_id"`
	SecondTargetID string     `json:"second_target_id,omitempty" db:"second_target_id"`
	Kind           ActionKind `json:"kind" db:"kind"`
	Timestamp      time.Time  `json:"timestamp" db:"timestamp"`
}

// MetadataPatch lists the metadata fields a resolution changed.
type MetadataPatch struct {
	SkipNextWolfKill *bool `json:"skip_next_wolf_kill,omitempty"`
}

func (p MetadataPatch) applyTo(m *GameMetadata) {
	if p.SkipNextWolfKill != nil {
		m.SkipNextWolfKill = *p.SkipNextWolfKill
	}
}

// Resolution is the outcome of a night.
type Resolution struct {
	Deaths  []string      `json:"deaths"`
	Logs    []string      `json:"logs"`
	Players []Player      `json:"players"`
	Patch   MetadataPatch `json:"patch"`
	// Warded maps a player to the Lawyer whose save took effect for them.
	Warded map[string]string `json:"warded,omitempty"`
}

type attack struct {
	kind   AttackType
	source string
}

type protection struct {
	kind   ProtectionKind
	source string
}

// nightEffects is the working set built by the collection pass and consumed by
// the attack pass.
type nightEffects struct {
	players     []Player
	meta        GameMetadata
	logs        []string
	attacks     map[string][]attack
	attackOrder []string
	protections map[string]protection
	packKills   map[PackFamily]string
	patch       MetadataPatch
	warded      map[string]string
}

func (fx *nightEffects) logf(format string, args ...any) {
	fx.logs = append(fx.logs, fmt.Sprintf(format, args...))
}

func (fx *nightEffects) player(id string) *Player {
	if i := findPlayer(fx.players, id); i >= 0 {
		return &fx.players[i]
	}
	return nil
}

func (fx *nightEffects) addAttack(targetID string, a attack) {
	if _, seen := fx.attacks[targetID]; !seen {
		fx.attackOrder = append(fx.attackOrder, targetID)
	}
	fx.attacks[targetID] = append(fx.attacks[targetID], a)
}

type actionResolver func(fx *nightEffects, action NightActionRecord, actor, target *Player)

var actionResolvers = map[ActionKind]actionResolver{
	ActionBlock:    resolveBlock,
	ActionProtect:  resolveProtect,
	ActionKill:     resolveKill,
	ActionCheck:    resolveCheck,
	ActionLink:     resolveLink,
	ActionSave:     resolveSave,
	ActionSilence:  resolveSilence,
	ActionRedirect: resolveRedirect,
}

// ResolveNight runs the night's recorded actions against the players and
// returns the deaths, the moderator log and the updated players. The input
// slices are not modified.
func ResolveNight(players []Player, actions []NightActionRecord, meta GameMetadata, rng Random) Resolution {
	fx := collectEffects(players, actions, meta)
	deaths := resolveAttacks(fx, rng)
	if deaths == nil {
		deaths = []string{}
	}
	return Resolution{
		Deaths:  deaths,
		Logs:    fx.logs,
		Players: fx.players,
		Patch:   fx.patch,
		Warded:  fx.warded,
	}
}

// collectEffects scans the actions in recorded order and gathers protections,
// attacks and status changes. No attack is evaluated here.
func collectEffects(players []Player, actions []NightActionRecord, meta GameMetadata) *nightEffects {
	fx := &nightEffects{
		players:     clonePlayers(players),
		meta:        meta,
		attacks:     map[string][]attack{},
		protections: map[string]protection{},
		packKills:   map[PackFamily]string{},
	}

	for _, p := range fx.players {
		switch {
		case p.IsProtectedPhysical:
			fx.protections[p.ID] = protection{kind: ProtectPhysical, source: "an earlier protection"}
		case p.IsProtectedWerewolf:
			fx.protections[p.ID] = protection{kind: ProtectWerewolfOnly, source: "an earlier protection"}
		}
	}

	for _, action := range actions {
		actor := fx.player(action.ActorID)
		target := fx.player(action.TargetID)
		if actor == nil || target == nil {
			continue
		}

		kind := action.Kind
		if kind == "" {
			kind = actor.Role.NightAction
		}
		resolve, ok := actionResolvers[kind]
		if !ok {
			continue
		}

		if fx.meta.AllGoodAbilitiesDisabled && !actor.Role.IsEvil {
			fx.logf("%s (%s) cannot act: good abilities are disabled", actor.Name, actor.Role.Name)
			continue
		}
		if limit := actor.Role.UsageLimit; limit > 0 {
			if actor.Metadata.UsedAbilities[actor.Role.ID] >= limit {
				fx.logf("%s (%s) has no uses left", actor.Name, actor.Role.Name)
				continue
			}
			if actor.Metadata.UsedAbilities == nil {
				actor.Metadata.UsedAbilities = map[string]int{}
			}
			actor.Metadata.UsedAbilities[actor.Role.ID]++
		}

		resolve(fx, action, actor, target)
	}
	return fx
}

func resolveBlock(fx *nightEffects, _ NightActionRecord, actor, target *Player) {
	fx.logf("%s blocked %s's ability", actor.Role.Name, target.Name)
}

func resolveProtect(fx *nightEffects, _ NightActionRecord, actor, target *Player) {
	kind := actor.Role.Protection
	if kind == "" {
		kind = ProtectPhysical
	}
	fx.protections[target.ID] = protection{kind: kind, source: actor.Name}
	target.IsProtectedPhysical = kind == ProtectPhysical
	target.IsProtectedWerewolf = kind == ProtectWerewolfOnly
	actor.Metadata.LastProtectedPlayer = target.ID

	against := "physical"
	if kind == ProtectWerewolfOnly {
		against = "werewolf"
	}
	fx.logf("%s protected %s from %s attacks", actor.Role.Name, target.Name, against)
}

func resolveKill(fx *nightEffects, _ NightActionRecord, actor, target *Player) {
	pack := actor.Role.Pack
	kind := actor.Role.AttackKind()

	if pack == PackNone {
		fx.addAttack(target.ID, attack{kind: kind, source: actor.Name})
		fx.logf("%s attacked %s", actor.Role.Name, target.Name)
		return
	}

	if chosen, done := fx.packKills[pack]; done {
		name := chosen
		if p := fx.player(chosen); p != nil {
			name = p.Name
		}
		fx.logf("Skipping duplicate %s action (pack already chose %s)", kind, name)
		return
	}
	fx.packKills[pack] = target.ID

	if pack == PackWerewolves && fx.meta.SkipNextWolfKill {
		fx.logf("Werewolves skipped their kill (Leper effect)")
		off := false
		fx.patch.SkipNextWolfKill = &off
		fx.meta.SkipNextWolfKill = false
		return
	}

	source := pack.displayName() + " Pack"
	fx.addAttack(target.ID, attack{kind: kind, source: source})
	fx.logf("%s attacked %s", pack.displayName(), target.Name)

	if pack == PackWerewolves && target.Role.HasTrait(TraitDetersPack) {
		fx.logf("%s is a %s! Werewolves will skip next kill.", target.Name, target.Role.Name)
		on := true
		fx.patch.SkipNextWolfKill = &on
	}
}

func resolveCheck(fx *nightEffects, _ NightActionRecord, actor, target *Player) {
	fx.logf("%s checked %s (%s)", actor.Role.Name, target.Name, target.Role.Name)
}

func resolveLink(fx *nightEffects, action NightActionRecord, actor, target *Player) {
	other := fx.player(action.SecondTargetID)
	if other == nil {
		return
	}
	target.LinkedTo = other.ID
	fx.logf("%s linked %s to %s", actor.Role.Name, target.Name, other.Name)
}

func resolveSave(fx *nightEffects, _ NightActionRecord, actor, target *Player) {
	fx.logf("%s attempted to save %s", actor.Role.Name, target.Name)
	if actor.Role.HasTrait(TraitBanishmentWard) {
		if fx.warded == nil {
			fx.warded = map[string]string{}
		}
		fx.warded[target.ID] = actor.ID
	}
}

func resolveSilence(fx *nightEffects, _ NightActionRecord, actor, target *Player) {
	target.IsSilenced = true
	fx.logf("%s silenced %s for the next day", actor.Role.Name, target.Name)
}

// resolveRedirect records the attempt only; attacks keep their targets.
func resolveRedirect(fx *nightEffects, _ NightActionRecord, actor, target *Player) {
	fx.logf("%s attempted to redirect attacks from %s", actor.Role.Name, target.Name)
}

// resolveAttacks evaluates every recorded attack against the protections
// collected in the first pass.
func resolveAttacks(fx *nightEffects, rng Random) []string {
	var deaths []string
	dying := map[string]bool{}

	for _, targetID := range fx.attackOrder {
		target := fx.player(targetID)
		if target == nil || !target.IsAlive {
			continue
		}
		prot, protected := fx.protections[targetID]
		died := false

		for _, a := range fx.attacks[targetID] {
			if protected && prot.kind.Blocks(a.kind) {
				fx.logf("%s was protected from %s attack by %s", target.Name, a.kind, prot.source)
				continue
			}
			if target.Role.HasTrait(TraitNightImmune) {
				fx.logf("%s (%s) is immune to night attacks!", target.Name, target.Role.Name)
				continue
			}
			if target.Role.HasTrait(TraitShield) && target.IsAlive && target.Metadata.HeroShieldActive {
				target.Metadata.HeroShieldActive = false
				fx.logf("%s (%s) survived attack using their shield!", target.Name, target.Role.Name)
				continue
			}
			died = true
		}

		if !died || dying[targetID] {
			continue
		}
		dying[targetID] = true
		deaths = append(deaths, targetID)
		fx.logf("%s died during the night", target.Name)

		if target.Role.HasTrait(TraitDogs) {
			var wolves []*Player
			for i := range fx.players {
				p := &fx.players[i]
				if p.IsAlive && p.Role.Faction == FactionWerewolves && !dying[p.ID] {
					wolves = append(wolves, p)
				}
			}
			if len(wolves) > 0 {
				victim := wolves[rng.Intn(len(wolves))]
				dying[victim.ID] = true
				deaths = append(deaths, victim.ID)
				fx.logf("%s's dogs killed %s (%s)", target.Name, victim.Name, victim.Role.Name)
			}
		}
	}
	return deaths
}

func (p PackFamily) displayName() string {
	switch p {
	case PackWerewolves:
		return "Werewolves"
	case PackVampires:
		return "Vampires"
	}
	return string(p)
}
