package main

// DeathResult is the outcome of ApplyDeaths.
type DeathResult struct {
	Players      []Player `json:"players"`
	LinkedDeaths []string `json:"linked_deaths"`
}

// ApplyDeaths marks the given players dead and takes their linked partners
// with them. Only the original batch cascades, one level deep; players that
// were already dead are left alone.
func ApplyDeaths(players []Player, ids []string) DeathResult {
	out := clonePlayers(players)
	var fresh []int
	for _, id := range ids {
		i := findPlayer(out, id)
		if i < 0 || !out[i].IsAlive {
			continue
		}
		out[i].IsAlive = false
		fresh = append(fresh, i)
	}

	linked := []string{}
	for _, i := range fresh {
		j := findPlayer(out, out[i].LinkedTo)
		if j < 0 || !out[j].IsAlive {
			continue
		}
		out[j].IsAlive = false
		linked = append(linked, out[j].ID)
	}
	return DeathResult{Players: out, LinkedDeaths: linked}
}

// deathEffects applies the metadata consequences of the given players dying
// on the current turn.
func deathEffects(players []Player, ids []string, meta GameMetadata, turn int) GameMetadata {
	for _, id := range ids {
		i := findPlayer(players, id)
		if i < 0 {
			continue
		}
		role := players[i].Role
		if role.HasTrait(TraitCountdown) && meta.InnkeeperDeadTurnNumber == nil {
			t := turn
			meta.InnkeeperDeadTurnNumber = &t
		}
		if role.HasTrait(TraitExtraLife) {
			meta.AllGoodAbilitiesDisabled = true
		}
	}
	return meta
}
