// Package domain holds the entities shared by the bot services.
package domain

// User is a person who started the bot at least once.
type User struct {
	ID        int64  `db:"user_id"`
	Username  string `db:"username"`
	FirstName string `db:"first_name"`
}

// Channel is a configured community channel offered on the welcome screen.
type Channel struct {
	ID    int64  `yaml:"id"`
	Label string `yaml:"label"`
	Icon  string `yaml:"icon"`
}

// Title renders the button caption for the channel.
func (c Channel) Title() string {
	if c.Icon == "" {
		return c.Label
	}
	return c.Icon + " " + c.Label
}

// ChannelStat is the subscriber count of one channel.
type ChannelStat struct {
	Channel     Channel
	Subscribers int
}
