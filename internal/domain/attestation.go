package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cryptoguard/cryptoguard/schemas"
)

// Attestation is a stored, signature-verified document.
type Attestation struct {
	ID            string          `json:"id"`
	Schema        string          `json:"schema"`
	IndexingValue string          `json:"indexingValue"`
	Attester      string          `json:"attester"`
	Value         json.RawMessage `json:"value"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// DecodedAttestation is one of Rating, Comment, Vote or UnrecognizedAttestation.
type DecodedAttestation interface {
	subject() string
}

type UnrecognizedAttestation struct {
	ID     string
	Schema string
}

func (r Rating) subject() string                  { return r.Rater }
func (c Comment) subject() string                 { return c.Author }
func (v Vote) subject() string                    { return v.Voter }
func (u UnrecognizedAttestation) subject() string { return "" }

// Subject returns the identity a decoded attestation speaks for.
func Subject(d DecodedAttestation) string {
	return d.subject()
}

func resolveSubject(ethAddress, attester string) string {
	if ethAddress != "" {
		return strings.ToLower(ethAddress)
	}
	return strings.ToLower(attester)
}

func DecodeAttestation(a Attestation) (DecodedAttestation, error) {
	switch a.Schema {
	case schemas.SafetyRatingURL:
		var payload schemas.SafetyRating
		if err := json.Unmarshal(a.Value, &payload); err != nil {
			return nil, errors.Wrap(ErrInvalidDocument, err.Error())
		}
		return Rating{
			Domain:    a.IndexingValue,
			Rater:     resolveSubject(payload.EthAddress, a.Attester),
			IsSafe:    payload.IsSafe,
			UpdatedAt: a.CreatedAt,
		}, nil

	case schemas.CommentURL:
		var payload schemas.Comment
		if err := json.Unmarshal(a.Value, &payload); err != nil {
			return nil, errors.Wrap(ErrInvalidDocument, err.Error())
		}
		return Comment{
			ID:        a.ID,
			Domain:    a.IndexingValue,
			Author:    resolveSubject(payload.EthAddress, a.Attester),
			Text:      payload.Comment,
			CreatedAt: a.CreatedAt,
		}, nil

	case schemas.VoteURL:
		var payload schemas.Vote
		if err := json.Unmarshal(a.Value, &payload); err != nil {
			return nil, errors.Wrap(ErrInvalidDocument, err.Error())
		}
		if payload.Vote != 1 && payload.Vote != -1 {
			return nil, ErrInvalidVote
		}
		commentID := payload.CommentID
		if commentID == "" {
			commentID = a.IndexingValue
		}
		return Vote{
			CommentID: strings.ToLower(commentID),
			Voter:     resolveSubject(payload.EthAddress, a.Attester),
			Value:     payload.Vote,
			CreatedAt: a.CreatedAt,
		}, nil

	default:
		return UnrecognizedAttestation{ID: a.ID, Schema: a.Schema}, nil
	}
}

// DecodeRatings decodes rating attestations, skipping anything else.
func DecodeRatings(attestations []Attestation) []Rating {
	ratings := make([]Rating, 0, len(attestations))
	for _, a := range attestations {
		decoded, err := DecodeAttestation(a)
		if err != nil {
			continue
		}
		if r, ok := decoded.(Rating); ok {
			ratings = append(ratings, r)
		}
	}
	return ratings
}

func DecodeComments(attestations []Attestation) []Comment {
	comments := make([]Comment, 0, len(attestations))
	for _, a := range attestations {
		decoded, err := DecodeAttestation(a)
		if err != nil {
			continue
		}
		if c, ok := decoded.(Comment); ok {
			comments = append(comments, c)
		}
	}
	return comments
}

func DecodeVotes(attestations []Attestation) []Vote {
	votes := make([]Vote, 0, len(attestations))
	for _, a := range attestations {
		decoded, err := DecodeAttestation(a)
		if err != nil {
			continue
		}
		if v, ok := decoded.(Vote); ok {
			votes = append(votes, v)
		}
	}
	return votes
}
