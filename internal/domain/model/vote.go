package model

// VoteResult is the outcome of a vote toggle: the new set size and whether the
// caller is now a member.
type VoteResult struct {
	Count int  `json:"count"`
	Voted bool `json:"voted"`
}

// ToggleMember removes id from set when present, otherwise appends it.
// The returned slice never contains duplicates if the input did not.
func ToggleMember(set []string, id string) ([]string, bool) {
	for i, v := range set {
		if v == id {
			out := make([]string, 0, len(set)-1)
			out = append(out, set[:i]...)
			return append(out, set[i+1:]...), false
		}
	}
	out := make([]string, 0, len(set)+1)
	out = append(out, set...)
	return append(out, id), true
}
