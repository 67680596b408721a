package domain

import "strconv"

type TabStatus struct {
	Domain  string `json:"domain"`
	Flagged bool   `json:"flagged"`
	Count   int    `json:"count"`
}

// ProjectStatus counts current unsafe ratings.
func ProjectStatus(records []Rating) TabStatus {
	var status TabStatus
	for _, r := range LatestRatings(records) {
		if status.Domain == "" {
			status.Domain = r.Domain
		}
		if !r.IsSafe {
			status.Count++
		}
	}
	status.Flagged = status.Count > 0
	return status
}

type Badge struct {
	TabID      int    `json:"tabId"`
	Icon       string `json:"icon"`
	BadgeText  string `json:"badgeText"`
	BadgeColor string `json:"badgeColor"`
}

func BadgeFor(tabID int, status TabStatus) Badge {
	if !status.Flagged {
		return Badge{TabID: tabID, Icon: IconDefault}
	}
	return Badge{
		TabID:      tabID,
		Icon:       IconFlagged,
		BadgeText:  strconv.Itoa(status.Count),
		BadgeColor: BadgeColorFlagged,
	}
}
