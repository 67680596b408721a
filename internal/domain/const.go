package domain

type ctxKey string

const (
	RequesterIdCtxKey          ctxKey = "cg-requesterId"
	RequesterEmailCtxKey       ctxKey = "cg-requesterEmail"
	RequesterTokenIdCtxKey     ctxKey = "cg-requesterTokenId"
	RequesterTokenExpiryCtxKey ctxKey = "cg-requesterTokenExpiry"
)

const (
	EventTypeRating  = "rating"
	EventTypeComment = "comment"
	EventTypeVote    = "vote"
)

const (
	BadgeColorFlagged = "#FF0000"
	IconFlagged       = "flagged"
	IconDefault       = "default"
)
