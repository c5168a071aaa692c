package consts

import "strconv"

// PostViewCountKey 帖子浏览量计数 key
func PostViewCountKey(postID uint64) string {
	return PostViewKey + strconv.FormatUint(postID, 10)
}

// UserUnreadMapKey 用户未读数 hash key
func UserUnreadMapKey(userID uint64) string {
	return UserUnreadKey + strconv.FormatUint(userID, 10)
}

// ParseIDSuffix 从 "prefix<id>" 中解析 id
func ParseIDSuffix(key, prefix string) (uint64, bool) {
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return 0, false
	}
	id, err := strconv.ParseUint(key[len(prefix):], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
