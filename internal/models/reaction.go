package models

import "slices"

// Reaction holds the participants of one reaction kind on a message, in
// the order they reacted.
type Reaction struct {
	Kind    string
	UserIDs []int64
}

// Has reports whether userID participates in this reaction.
func (r Reaction) Has(userID int64) bool {
	return slices.Contains(r.UserIDs, userID)
}

func (r Reaction) View(viewerID int64) ReactionView {
	return ReactionView{
		Kind:          r.Kind,
		UserIDs:       append([]int64{}, r.UserIDs...),
		ViewerReacted: r.Has(viewerID),
	}
}

type ReactionView struct {
	Kind          string  `json:"react_kind"`
	UserIDs       []int64 `json:"u_ids"`
	ViewerReacted bool    `json:"is_this_user_reacted"`
}
