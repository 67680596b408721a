package domain

import (
	"sort"
	"strings"
	"time"
)

type Comment struct {
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

type Vote struct {
	CommentID string    `json:"commentId"`
	Voter     string    `json:"voter"`
	Value     int       `json:"value"`
	CreatedAt time.Time `json:"createdAt"`
}

// VoteTally selects how repeated votes by one voter are counted.
type VoteTally string

const (
	// VoteTallyLatest counts only each voter's most recent vote.
	VoteTallyLatest VoteTally = "latest"
	// VoteTallyAll counts every vote record ever appended.
	VoteTallyAll VoteTally = "all"
)

func (t VoteTally) Valid() bool {
	return t == VoteTallyLatest || t == VoteTallyAll
}

type VoteCount struct {
	Upvotes    int  `json:"upvotes"`
	Downvotes  int  `json:"downvotes"`
	NetScore   int  `json:"netScore"`
	ViewerVote *int `json:"viewerVote"`
}

type CommentView struct {
	ID        string    `json:"id"`
	Domain    string    `json:"domain"`
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	IsEdited  bool      `json:"isEdited"`
	VoteCount
}

// CurrentComments reduces comment history to the latest record per author.
func CurrentComments(records []Comment) []CommentView {
	type group struct {
		current Comment
		size    int
	}

	groups := make(map[string]*group)
	order := make([]string, 0)
	for _, c := range records {
		key := strings.ToLower(c.Author)
		g, ok := groups[key]
		if !ok {
			groups[key] = &group{current: c, size: 1}
			order = append(order, key)
			continue
		}
		g.size++
		if !c.CreatedAt.Before(g.current.CreatedAt) {
			g.current = c
		}
	}

	views := make([]CommentView, 0, len(groups))
	for _, key := range order {
		g := groups[key]
		views = append(views, CommentView{
			ID:        g.current.ID,
			Domain:    g.current.Domain,
			Author:    strings.ToLower(g.current.Author),
			Text:      g.current.Text,
			CreatedAt: g.current.CreatedAt,
			IsEdited:  g.size > 1,
		})
	}
	return views
}

// LatestVotes keeps the most recent vote per voter.
func LatestVotes(votes []Vote) []Vote {
	latest := make(map[string]Vote, len(votes))
	order := make([]string, 0)
	for _, v := range votes {
		key := strings.ToLower(v.Voter)
		prev, ok := latest[key]
		if !ok {
			order = append(order, key)
		}
		if !ok || !v.CreatedAt.Before(prev.CreatedAt) {
			latest[key] = v
		}
	}

	result := make([]Vote, 0, len(latest))
	for _, key := range order {
		result = append(result, latest[key])
	}
	return result
}

func TallyVotes(votes []Vote, viewer string, mode VoteTally) VoteCount {
	counted := votes
	if mode != VoteTallyAll {
		counted = LatestVotes(votes)
	}

	var count VoteCount
	for _, v := range counted {
		switch v.Value {
		case 1:
			count.Upvotes++
		case -1:
			count.Downvotes++
		}
	}
	count.NetScore = count.Upvotes - count.Downvotes

	if viewer != "" {
		var mine *Vote
		for i := range votes {
			v := votes[i]
			if !strings.EqualFold(v.Voter, viewer) {
				continue
			}
			if mine == nil || !v.CreatedAt.Before(mine.CreatedAt) {
				mine = &v
			}
		}
		if mine != nil {
			value := mine.Value
			count.ViewerVote = &value
		}
	}

	return count
}

// SortComments puts the viewer's own comment first, then newest first.
func SortComments(views []CommentView, viewer string) {
	sort.SliceStable(views, func(i, j int) bool {
		iMine := viewer != "" && strings.EqualFold(views[i].Author, viewer)
		jMine := viewer != "" && strings.EqualFold(views[j].Author, viewer)
		if iMine != jMine {
			return iMine
		}
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
}
