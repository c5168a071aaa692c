package consts

const (
	PostViewKey         = "post:views:"
	UserUnreadKey       = "user:unread:"
	UnreadMessagesField = "messages"
	RankingHotKey       = "ranking:hot:"
	RankingResetKey     = "ranking:reset:"
)
