package social

// Follow is the body of a follow request; the follower is the caller.
type Follow struct {
	User string `json:"user"`
}

type Relations struct {
	User  string   `json:"user"`
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// graph is the stored follow document: follower -> followees.
type graph map[string][]string
