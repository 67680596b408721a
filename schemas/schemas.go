package schemas

const (
	SafetyRatingURL string = "https://schema.cryptoguard.dev/safety-rating.json"
	CommentURL      string = "https://schema.cryptoguard.dev/comment.json"
	VoteURL         string = "https://schema.cryptoguard.dev/vote.json"
)

// All lists the schemas a node accepts on /commit.
var All = map[string]string{
	"safetyRating": SafetyRatingURL,
	"comment":      CommentURL,
	"vote":         VoteURL,
}

// SafetyRating and the other payloads carry EthAddress when the node attester
// signs on behalf of a session identity.
type SafetyRating struct {
	URL        string `json:"url,omitempty"`
	IsSafe     bool   `json:"isSafe"`
	EthAddress string `json:"ethAddress,omitempty"`
}

type Comment struct {
	Comment    string `json:"comment"`
	EthAddress string `json:"ethAddress,omitempty"`
}

type Vote struct {
	CommentID  string `json:"commentId"`
	Vote       int    `json:"vote"`
	EthAddress string `json:"ethAddress,omitempty"`
}
