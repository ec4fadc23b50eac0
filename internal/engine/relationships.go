// Grouping: agents who share an activity strengthen their bond. Gatherings
// arrange themselves in a ring, coworkers on one field bond through work,
// and conversation partners through talk.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/talgya/npc-favor/internal/agents"
	"github.com/talgya/npc-favor/internal/social"
	"github.com/talgya/npc-favor/internal/world"
)

const (
	clusterLink     = 6.0  // metres; single-link distance for a gathering cluster
	ringMinRadius   = 1.5  // metres
	ringPerMember   = 0.6  // extra ring radius per member
	shareCooldown   = 60   // game minutes between bond gains for one pair
	friendThreshold = 75.0 // bond value announced when first crossed
)

// updateGroupings runs the periodic grouping pass.
func (s *Simulation) updateGroupings() {
	s.formClusters()
	s.coworkers()
	s.conversations()
}

// formClusters groups nearby gathering agents and gives each a slot on a
// ring round the cluster centroid.
func (s *Simulation) formClusters() {
	var gathering []*agents.Agent
	for _, a := range s.Agents {
		if a.State == agents.StateGathering {
			gathering = append(gathering, a)
		}
	}
	for _, c := range clusterAgents(gathering, clusterLink) {
		if len(c) < 2 {
			continue
		}
		var centre world.Vec3
		for _, a := range c {
			centre = centre.Add(a.Position)
		}
		centre = centre.Scale(1 / float64(len(c)))
		r := math.Max(ringMinRadius, ringPerMember*float64(len(c)))
		for i, a := range c {
			ang := 2 * math.Pi * float64(i) / float64(len(c))
			a.Target = world.Vec3{X: centre.X + math.Sin(ang)*r, Y: a.Target.Y, Z: centre.Z + math.Cos(ang)*r}
			a.Action = fmt.Sprintf("gathering_with_%d", len(c)-1)
		}
		for i := range c {
			for j := i + 1; j < len(c); j++ {
				s.shareActivity(c[i], c[j], social.InteractGather)
			}
		}
	}
}

// clusterAgents partitions agents into single-link clusters. Output is
// ordered by the lowest id in each cluster, members by id.
func clusterAgents(in []*agents.Agent, link float64) [][]*agents.Agent {
	sorted := append([]*agents.Agent(nil), in...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	seen := make([]bool, len(sorted))
	var out [][]*agents.Agent
	for i := range sorted {
		if seen[i] {
			continue
		}
		seen[i] = true
		cluster := []*agents.Agent{sorted[i]}
		for k := 0; k < len(cluster); k++ {
			for j := range sorted {
				if !seen[j] && world.DistXZ(cluster[k].Position, sorted[j].Position) <= link {
					seen[j] = true
					cluster = append(cluster, sorted[j])
				}
			}
		}
		sort.Slice(cluster, func(i, j int) bool { return cluster[i].ID < cluster[j].ID })
		out = append(out, cluster)
	}
	return out
}

// coworkers bonds agents working the same field.
func (s *Simulation) coworkers() {
	ids := make([]uint64, 0, len(s.fields))
	for id := range s.fields {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, fid := range ids {
		ws := s.workers.Workers(fid)
		for i := range ws {
			for j := i + 1; j < len(ws); j++ {
				a, okA := s.AgentIndex[agents.AgentID(ws[i])]
				b, okB := s.AgentIndex[agents.AgentID(ws[j])]
				if okA && okB && a.State == agents.StateWorking && b.State == agents.StateWorking {
					s.shareActivity(a, b, social.InteractWork)
				}
			}
		}
	}
}

// conversations bonds mutually paired agents who are both socializing.
func (s *Simulation) conversations() {
	for _, a := range s.Agents {
		if a.State != agents.StateSocializing {
			continue
		}
		b, ok := s.partnerOf(a)
		if !ok || b.ID < a.ID || b.State != agents.StateSocializing {
			continue
		}
		s.shareActivity(a, b, social.InteractSocialize)
	}
}

// shareActivity moves the pair's bond at most once per cooldown window and
// records the meeting on both agents.
func (s *Simulation) shareActivity(a, b *agents.Agent, kind social.InteractionKind) {
	if a.ID == b.ID {
		return
	}
	now := s.minute()
	key := social.Pair(a.ID, b.ID)
	if last, ok := s.shared[key]; ok && now-last < shareCooldown {
		return
	}
	s.shared[key] = now

	before := s.bonds.Value(a.ID, b.ID)
	after := s.bonds.Interact(a, b, kind, now)
	sentiment := (after - s.cfg.Bonds.Neutral) / 50
	detail := interactionLabel(kind)
	aid, bid := a.ID, b.ID
	agents.AddEncounter(a, agents.Encounter{Kind: "agent", Detail: detail, Partner: &bid, Sentiment: sentiment, At: now})
	agents.AddEncounter(b, agents.Encounter{Kind: "agent", Detail: detail, Partner: &aid, Sentiment: sentiment, At: now})
	s.markDirty(a.ID)
	s.markDirty(b.ID)

	slog.Debug("shared activity", "a", a.ID, "b", b.ID, "kind", detail, "bond", after)
	if before < friendThreshold && after >= friendThreshold {
		s.emit(Event{Category: "social", AgentID: a.ID,
			Description: fmt.Sprintf("%s and %s have become friends", a.Name, b.Name),
			Meta:        map[string]any{"other": b.ID, "bond": after}})
	}
}

func interactionLabel(k social.InteractionKind) string {
	switch k {
	case social.InteractWork:
		return "worked_together"
	case social.InteractGather:
		return "gathered_together"
	default:
		return "chatted"
	}
}
