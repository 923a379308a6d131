package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap"

	"tablebot/config"
	"tablebot/models"
	"tablebot/platform"
	"tablebot/platform/platformtest"
	"tablebot/store"
)

const (
	everyoneRole = "1"
	teamlessRole = "5"
	botRole      = "6"
	mentorRole   = "7"
	managerRole  = "8"

	tablesCategory = "20"
	mentorsChannel = "30"
	reportsChannel = "40"
)

func testConfig() *config.Config {
	return &config.Config{
		CommandPrefix:     "~",
		TablesCategoryID:  tablesCategory,
		MentorsChannelID:  mentorsChannel,
		ReportsChannelID:  reportsChannel,
		EveryoneRoleID:    everyoneRole,
		TeamlessRoleID:    teamlessRole,
		BotRoleID:         botRole,
		MentorRoleID:      mentorRole,
		ManagerRoleID:     managerRole,
		RequestRateLimit:  3,
		RequestRateWindow: time.Minute,
	}
}

func newTestStore(t *testing.T) (*store.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s := store.NewRedisStore(store.Options{Addr: mr.Addr()})
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func newTestPlatform() *platformtest.Platform {
	p := platformtest.New()
	p.SeedRole(everyoneRole, "@everyone")
	p.SeedRole(teamlessRole, "Teamless")
	p.SeedRole(botRole, "Bot")
	p.SeedRole(mentorRole, "Mentor")
	p.SeedRole(managerRole, "Manager")
	p.SetChannelName(mentorsChannel, "mentors")
	p.SetChannelName(reportsChannel, "reports")
	return p
}

// tableEnv a TableService over a fake guild and miniredis
type tableEnv struct {
	platform  *platformtest.Platform
	store     *store.RedisStore
	directory *Directory
	tables    *TableService
	events    *recordingBus
}

// recordingBus collects every event delivered through a local EventBus
type recordingBus struct {
	*EventBus
	ch chan string
}

func newRecordingBus() *recordingBus {
	b := &recordingBus{EventBus: NewEventBus(nil, zap.NewNop()), ch: make(chan string, 64)}
	b.Subscribe(func(_ context.Context, e models.Event) {
		b.ch <- strings.Join([]string{string(e.Type), e.ParticipantID, e.Label, e.RequestID}, "|")
	})
	return b
}

func (b *recordingBus) drain() []string {
	var out []string
	for {
		select {
		case s := <-b.ch:
			out = append(out, s)
		default:
			return out
		}
	}
}

func newTableEnv(t *testing.T) *tableEnv {
	t.Helper()
	cfg := testConfig()
	p := newTestPlatform()
	s, _ := newTestStore(t)
	dir := NewDirectory(s)
	bus := newRecordingBus()
	log := zap.NewNop()
	return &tableEnv{
		platform:  p,
		store:     s,
		directory: dir,
		tables:    NewTableService(p, dir, NewProvisioner(p, cfg, log), bus.EventBus, cfg, log),
		events:    bus,
	}
}

func platformRoleSpec(name string) platform.RoleSpec {
	return platform.RoleSpec{Name: name}
}
