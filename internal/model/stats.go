package model

// CampaignStats is the dashboard overview across all campaigns.
type CampaignStats struct {
	TotalCampaigns     int             `json:"total_campaigns"`
	DraftCampaigns     int             `json:"draft_campaigns"`
	ScheduledCampaigns int             `json:"scheduled_campaigns"`
	ActiveCampaigns    int             `json:"active_campaigns"`
	CompletedCampaigns int             `json:"completed_campaigns"`
	CancelledCampaigns int             `json:"cancelled_campaigns"`
	MessagesTargeted   int             `json:"messages_targeted"`
	MessagesSent       int             `json:"messages_sent"`
	MessagesDelivered  int             `json:"messages_delivered"`
	MessagesFailed     int             `json:"messages_failed"`
	MessagesPending    int             `json:"messages_pending"`
	DeliveryRate       float64         `json:"delivery_rate"`
	ByChannel          map[Channel]int `json:"by_channel"`
}

// Summarize folds campaigns into dashboard stats. DeliveryRate is delivered/sent
// as a percentage, zero when nothing was sent.
func Summarize(campaigns []*Campaign) CampaignStats {
	stats := CampaignStats{
		ByChannel: map[Channel]int{ChannelSMS: 0, ChannelWhatsApp: 0, ChannelIVR: 0},
	}
	for _, c := range campaigns {
		stats.TotalCampaigns++
		switch c.Status {
		case StatusDraft:
			stats.DraftCampaigns++
		case StatusScheduled:
			stats.ScheduledCampaigns++
		case StatusInProgress:
			stats.ActiveCampaigns++
		case StatusCompleted:
			stats.CompletedCampaigns++
		case StatusCancelled:
			stats.CancelledCampaigns++
		}
		stats.ByChannel[c.Channel]++
		stats.MessagesTargeted += c.ContactsCount
		stats.MessagesSent += c.Progress.Sent
		stats.MessagesDelivered += c.Progress.Delivered
		stats.MessagesFailed += c.Progress.Failed
		stats.MessagesPending += c.Progress.Pending
	}
	if stats.MessagesSent > 0 {
		stats.DeliveryRate = float64(stats.MessagesDelivered) / float64(stats.MessagesSent) * 100
	}
	return stats
}
