// Agent encounter log: a short ring of notable meetings, newest first.
package agents

const MaxEncounters = 10

// Encounter records something that happened between an agent and the
// player or another agent.
type Encounter struct {
	Kind      string   `json:"kind"`
	Detail    string   `json:"detail"`
	Partner   *AgentID `json:"partner,omitempty"`
	Sentiment float64  `json:"sentiment"` // -1 hostile .. +1 warm
	At        int64    `json:"at"`        // absolute game minute
}

// AddEncounter prepends an encounter, dropping the oldest once the ring
// holds MaxEncounters entries.
func AddEncounter(a *Agent, e Encounter) {
	if e.Sentiment < -1 {
		e.Sentiment = -1
	} else if e.Sentiment > 1 {
		e.Sentiment = 1
	}
	n := len(a.Encounters)
	if n < MaxEncounters {
		n++
	}
	out := make([]Encounter, n)
	out[0] = e
	copy(out[1:], a.Encounters)
	a.Encounters = out
}

// RecentEncounters returns up to count encounters, newest first.
func RecentEncounters(a *Agent, count int) []Encounter {
	if count > len(a.Encounters) {
		count = len(a.Encounters)
	}
	if count <= 0 {
		return nil
	}
	out := make([]Encounter, count)
	copy(out, a.Encounters[:count])
	return out
}

// EncounterSentiment averages the sentiment of the stored encounters with
// one partner. Zero when there are none.
func EncounterSentiment(a *Agent, partner AgentID) float64 {
	var sum float64
	var n int
	for _, e := range a.Encounters {
		if e.Partner != nil && *e.Partner == partner {
			sum += e.Sentiment
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
