package analytics

import "fmt"

// Scope fragments restrict url_analytics rows to one alias, to the owner's
// aliases under a topic, or to every alias of an owner.
const (
	scopeAlias = `alias = $1`
	scopeTopic = `alias IN (SELECT alias FROM short_urls WHERE topic = $1 AND user_id = $2)`
	scopeOwner = `alias IN (SELECT alias FROM short_urls WHERE user_id = $1)`
)

// Counts are cast to text; the engine parses them back into integers.
var (
	queryAliasExists = `SELECT EXISTS (SELECT 1 FROM short_urls WHERE alias = $1)`

	queryAliasTotalClicks  = `SELECT COUNT(*)::text FROM url_analytics WHERE ` + scopeAlias
	queryAliasUniqueUsers  = `SELECT COUNT(DISTINCT ip_address)::text FROM url_analytics WHERE ` + scopeAlias
	queryAliasClicksByDate = clicksByDateQuery(scopeAlias)
	queryAliasOSType       = breakdownQuery("os_name", scopeAlias)
	queryAliasDeviceType   = breakdownQuery("device_name", scopeAlias)

	queryTopicURLs         = urlStatsQuery(`s.topic = $1 AND s.user_id = $2`)
	queryTopicClicksByDate = clicksByDateQuery(scopeTopic)
	queryTopicOSType       = breakdownQuery("os_name", scopeTopic)
	queryTopicDeviceType   = breakdownQuery("device_name", scopeTopic)

	queryOwnerURLs         = urlStatsQuery(`s.user_id = $1`)
	queryOwnerClicksByDate = clicksByDateQuery(scopeOwner)
	queryOwnerOSType       = breakdownQuery("os_name", scopeOwner)
	queryOwnerDeviceType   = breakdownQuery("device_name", scopeOwner)
)

// clicksByDateQuery counts clicks per UTC calendar date over the trailing
// 7 days, newest first. Dates do not depend on the session time zone.
func clicksByDateQuery(scope string) string {
	return fmt.Sprintf(`
		SELECT TO_CHAR(DATE(timestamp AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS date, COUNT(*)::text AS click_count
		FROM url_analytics
		WHERE %s
		  AND timestamp > NOW() - INTERVAL '7 days'
		GROUP BY DATE(timestamp AT TIME ZONE 'UTC')
		ORDER BY DATE(timestamp AT TIME ZONE 'UTC') DESC`, scope)
}

// breakdownQuery groups by column. NULL values form their own group.
func breakdownQuery(column, scope string) string {
	return fmt.Sprintf(`
		SELECT %[1]s, COUNT(DISTINCT ip_address)::text AS unique_users, COUNT(*)::text AS unique_clicks
		FROM url_analytics
		WHERE %[2]s
		GROUP BY %[1]s`, column, scope)
}

// urlStatsQuery lists per-alias totals. The outer join keeps aliases with no
// clicks; counting a joined column yields 0 for them.
func urlStatsQuery(filter string) string {
	return fmt.Sprintf(`
		SELECT s.alias, COUNT(a.id)::text AS total_clicks, COUNT(DISTINCT a.ip_address)::text AS unique_users
		FROM short_urls s
		LEFT JOIN url_analytics a ON a.alias = s.alias
		WHERE %s
		GROUP BY s.alias
		ORDER BY s.alias`, filter)
}
