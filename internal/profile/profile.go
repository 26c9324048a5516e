package profile

// Account is one social account linked to a Talent Protocol identity.
type Account struct {
	Source     string `json:"source"`
	Username   string `json:"username"`
	Identifier string `json:"identifier"`
}

// Profile is the normalized reputation record for a single Farcaster
// identity, merged from the upstream profile and scores responses.
type Profile struct {
	TalentScore      float64            `json:"talent_score"`
	BuilderScore     float64            `json:"builder_score"`
	Accounts         []Account          `json:"accounts"`
	PassportID       string             `json:"passport_id,omitempty"`
	UserID           string             `json:"user_id,omitempty"`
	AdditionalScores map[string]float64 `json:"additional_scores,omitempty"`
	RankPosition     *int               `json:"rank_position,omitempty"`
}

// SearchUser is a candidate identity returned by the user directory.
type SearchUser struct {
	FID         int64  `json:"fid"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"pfp_url"`
}

// Clone returns a deep copy so cached profiles cannot be mutated by callers.
func (p Profile) Clone() Profile {
	out := p
	if p.Accounts != nil {
		out.Accounts = make([]Account, len(p.Accounts))
		copy(out.Accounts, p.Accounts)
	}
	if p.AdditionalScores != nil {
		out.AdditionalScores = make(map[string]float64, len(p.AdditionalScores))
		for slug, points := range p.AdditionalScores {
			out.AdditionalScores[slug] = points
		}
	}
	if p.RankPosition != nil {
		rank := *p.RankPosition
		out.RankPosition = &rank
	}
	return out
}
