// Package platformtest provides an in-memory platform.Platform for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"tablebot/platform"
)

// Message a message recorded by SendMessage or SendEmbed
type Message struct {
	ChannelID string
	Content   string
	Embed     *platform.Embed
}

// Platform an in-memory guild. Failures can be injected per method name.
type Platform struct {
	mu       sync.Mutex
	nextID   int64
	roles    map[string]platform.RoleSpec
	channels map[string]platform.ChannelSpec
	members  map[string]map[string]bool
	messages []Message
	deleted  []string
	calls    map[string]int
	fail     map[string]error

	// BeforeCreateRole runs inside CreateRole before the role is stored,
	// letting a test simulate a concurrent create.
	BeforeCreateRole func(p *Platform, spec platform.RoleSpec)
}

// New creates an empty guild.
func New() *Platform {
	return &Platform{
		nextID:   1000,
		roles:    make(map[string]platform.RoleSpec),
		channels: make(map[string]platform.ChannelSpec),
		members:  make(map[string]map[string]bool),
		calls:    make(map[string]int),
		fail:     make(map[string]error),
	}
}

// FailOn makes every later call of method return err; nil clears it.
func (p *Platform) FailOn(method string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.fail, method)
		return
	}
	p.fail[method] = err
}

// Calls returns how many times method was invoked.
func (p *Platform) Calls(method string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[method]
}

// AddMember seats userID in the guild holding roleIDs.
func (p *Platform) AddMember(userID string, roleIDs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	set := make(map[string]bool)
	for _, id := range roleIDs {
		set[id] = true
	}
	p.members[userID] = set
}

// SeedRole stores a role with a fixed id.
func (p *Platform) SeedRole(id, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roles[id] = platform.RoleSpec{Name: name}
}

// InsertRole stores a role without going through CreateRole and returns its id.
func (p *Platform) InsertRole(spec platform.RoleSpec) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.newID()
	p.roles[id] = spec
	return id
}

// Role returns the spec of role id.
func (p *Platform) Role(id string) (platform.RoleSpec, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	spec, ok := p.roles[id]
	return spec, ok
}

// Channel returns the spec of channel id.
func (p *Platform) Channel(id string) (platform.ChannelSpec, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	spec, ok := p.channels[id]
	return spec, ok
}

// CountRoles counts roles named name.
func (p *Platform) CountRoles(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, r := range p.roles {
		if r.Name == name {
			n++
		}
	}
	return n
}

// CountChannels counts channels named name.
func (p *Platform) CountChannels(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.channels {
		if c.Name == name {
			n++
		}
	}
	return n
}

// HasRole reports whether userID holds roleID.
func (p *Platform) HasRole(userID, roleID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.members[userID][roleID]
}

// Messages returns the messages sent to channelID.
func (p *Platform) Messages(channelID string) []Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Message
	for _, m := range p.messages {
		if m.ChannelID == channelID {
			out = append(out, m)
		}
	}
	return out
}

// DeletedMessages returns "channel/message" pairs passed to DeleteMessage.
func (p *Platform) DeletedMessages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.deleted...)
}

// SetChannelName names a channel without going through CreateChannel.
func (p *Platform) SetChannelName(id, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[id] = platform.ChannelSpec{Name: name}
}

func (p *Platform) enter(method string) error {
	p.calls[method]++
	return p.fail[method]
}

func (p *Platform) newID() string {
	p.nextID++
	return fmt.Sprintf("%d", p.nextID)
}

func (p *Platform) RolesByName(_ context.Context, name string) ([]platform.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("RolesByName"); err != nil {
		return nil, err
	}
	var out []platform.Role
	for id, r := range p.roles {
		if r.Name == name {
			out = append(out, platform.Role{ID: id, Name: r.Name})
		}
	}
	return out, nil
}

func (p *Platform) CreateRole(_ context.Context, spec platform.RoleSpec) (platform.Role, error) {
	p.mu.Lock()
	if err := p.enter("CreateRole"); err != nil {
		p.mu.Unlock()
		return platform.Role{}, err
	}
	hook := p.BeforeCreateRole
	p.mu.Unlock()

	if hook != nil {
		hook(p, spec)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.newID()
	p.roles[id] = spec
	return platform.Role{ID: id, Name: spec.Name}, nil
}

func (p *Platform) DeleteRole(_ context.Context, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteRole"); err != nil {
		return err
	}
	delete(p.roles, roleID)
	for _, set := range p.members {
		delete(set, roleID)
	}
	return nil
}

func (p *Platform) ChannelsByName(_ context.Context, name string) ([]platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ChannelsByName"); err != nil {
		return nil, err
	}
	var out []platform.Channel
	for id, c := range p.channels {
		if c.Name == name {
			out = append(out, platform.Channel{ID: id, Name: c.Name, ParentID: c.ParentID})
		}
	}
	return out, nil
}

func (p *Platform) CreateChannel(_ context.Context, spec platform.ChannelSpec) (platform.Channel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("CreateChannel"); err != nil {
		return platform.Channel{}, err
	}
	id := p.newID()
	p.channels[id] = spec
	return platform.Channel{ID: id, Name: spec.Name, ParentID: spec.ParentID}, nil
}

func (p *Platform) DeleteChannel(_ context.Context, channelID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteChannel"); err != nil {
		return err
	}
	delete(p.channels, channelID)
	return nil
}

func (p *Platform) ChannelName(_ context.Context, channelID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("ChannelName"); err != nil {
		return "", err
	}
	c, ok := p.channels[channelID]
	if !ok {
		return "", fmt.Errorf("unknown channel %s", channelID)
	}
	return c.Name, nil
}

func (p *Platform) MemberRoles(_ context.Context, userID string) ([]platform.Role, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("MemberRoles"); err != nil {
		return nil, err
	}
	set, ok := p.members[userID]
	if !ok {
		return nil, fmt.Errorf("unknown member %s", userID)
	}
	var out []platform.Role
	for id := range set {
		out = append(out, platform.Role{ID: id, Name: p.roles[id].Name})
	}
	return out, nil
}

func (p *Platform) AddRole(_ context.Context, userID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("AddRole"); err != nil {
		return err
	}
	set, ok := p.members[userID]
	if !ok {
		return fmt.Errorf("unknown member %s", userID)
	}
	set[roleID] = true
	return nil
}

func (p *Platform) RemoveRole(_ context.Context, userID, roleID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("RemoveRole"); err != nil {
		return err
	}
	set, ok := p.members[userID]
	if !ok {
		return fmt.Errorf("unknown member %s", userID)
	}
	delete(set, roleID)
	return nil
}

func (p *Platform) SendMessage(_ context.Context, channelID, content string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("SendMessage"); err != nil {
		return err
	}
	p.messages = append(p.messages, Message{ChannelID: channelID, Content: content})
	return nil
}

func (p *Platform) SendEmbed(_ context.Context, channelID string, embed platform.Embed) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("SendEmbed"); err != nil {
		return err
	}
	p.messages = append(p.messages, Message{ChannelID: channelID, Embed: &embed})
	return nil
}

func (p *Platform) DeleteMessage(_ context.Context, channelID, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.enter("DeleteMessage"); err != nil {
		return err
	}
	p.deleted = append(p.deleted, channelID+"/"+messageID)
	return nil
}

var _ platform.Platform = (*Platform)(nil)
