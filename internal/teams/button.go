package teams

import (
	"errors"
	"strings"
)

// InvitePrefix is the first segment of every invite button id.
const InvitePrefix = "invite"

// InviteAction is what an invite button does.
type InviteAction string

const (
	Accept  InviteAction = "accept"
	Decline InviteAction = "decline"
)

// ErrMalformedInvite is returned for button ids that do not parse.
var ErrMalformedInvite = errors.New("malformed invite button")

// InviteButton is the state carried in an invite button id. Everything the
// handler needs is encoded, so any instance can serve the press.
type InviteButton struct {
	Action      InviteAction
	InviteeID   string
	TeamStdName string
}

// ID formats b as invite;<action>;<inviteeId>;<teamStdName>.
func (b InviteButton) ID() string {
	return strings.Join([]string{InvitePrefix, string(b.Action), b.InviteeID, b.TeamStdName}, ";")
}

// ParseInviteButton is the inverse of InviteButton.ID.
func ParseInviteButton(id string) (InviteButton, error) {
	seg := strings.Split(id, ";")
	if len(seg) != 4 || seg[0] != InvitePrefix {
		return InviteButton{}, ErrMalformedInvite
	}
	b := InviteButton{Action: InviteAction(seg[1]), InviteeID: seg[2], TeamStdName: seg[3]}
	if b.Action != Accept && b.Action != Decline {
		return InviteButton{}, ErrMalformedInvite
	}
	if b.InviteeID == "" || b.TeamStdName == "" {
		return InviteButton{}, ErrMalformedInvite
	}
	return b, nil
}
