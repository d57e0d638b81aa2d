package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"auction-site/internal/domain"
	"auction-site/internal/metrics"
	"auction-site/pkg/logger"
)

var errStorage = errors.New("storage unavailable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 10, 2, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memItems struct {
	mu    sync.Mutex
	items map[string]*domain.Item
	bids  *memBids
	err   error
}

func newMemItems(bids *memBids) *memItems {
	return &memItems{items: make(map[string]*domain.Item), bids: bids}
}

func copyItem(item *domain.Item) *domain.Item {
	c := *item
	if item.ClosesAt != nil {
		t := *item.ClosesAt
		c.ClosesAt = &t
	}
	if item.WinningBidID != nil {
		id := *item.WinningBidID
		c.WinningBidID = &id
	}
	return &c
}

func (r *memItems) CreateItem(_ context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.items[item.ID] = copyItem(item)
	return nil
}

func (r *memItems) GetItem(_ context.Context, itemID string) (*domain.Item, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	item, ok := r.items[itemID]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, domain.ErrNotFound)
	}
	return copyItem(item), nil
}

func (r *memItems) UpdateItem(_ context.Context, item *domain.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[item.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Closed {
		return domain.ErrItemClosed
	}
	stored.Title = item.Title
	stored.Description = item.Description
	stored.ClosesAt = copyItem(item).ClosesAt
	return nil
}

func (r *memItems) DeleteItem(_ context.Context, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[itemID]; !ok {
		return domain.ErrNotFound
	}
	delete(r.items, itemID)
	return nil
}

func (r *memItems) MarkClosed(_ context.Context, itemID string, winningBidID *string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	stored, ok := r.items[itemID]
	if !ok || stored.Closed {
		return false, nil
	}
	stored.Closed = true
	if winningBidID != nil {
		id := *winningBidID
		stored.WinningBidID = &id
	}
	return true, nil
}

func (r *memItems) filter(keep func(*domain.Item) bool) []*domain.Item {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Item
	for _, item := range r.items {
		if keep(item) {
			out = append(out, copyItem(item))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memItems) ListOpenItems(_ context.Context, now time.Time, limit, offset int) ([]*domain.Item, error) {
	open := r.filter(func(i *domain.Item) bool { return i.ClosesAt != nil && i.ClosesAt.After(now) })
	sort.SliceStable(open, func(i, j int) bool { return open[i].ClosesAt.After(*open[j].ClosesAt) })
	if offset >= len(open) {
		return nil, nil
	}
	end := offset + limit
	if end > len(open) {
		end = len(open)
	}
	return open[offset:end], nil
}

func (r *memItems) ListUnclosed(_ context.Context) ([]*domain.Item, error) {
	return r.filter(func(i *domain.Item) bool { return !i.Closed && i.ClosesAt != nil }), nil
}

func (r *memItems) ListOverdue(_ context.Context, now time.Time) ([]*domain.Item, error) {
	return r.filter(func(i *domain.Item) bool {
		return !i.Closed && i.ClosesAt != nil && !i.ClosesAt.After(now)
	}), nil
}

func (r *memItems) ListBySeller(_ context.Context, sellerID string) ([]*domain.Item, error) {
	return r.filter(func(i *domain.Item) bool { return i.SellerID == sellerID }), nil
}

func (r *memItems) ListWonBy(ctx context.Context, bidderID string) ([]*domain.Item, error) {
	closed := r.filter(func(i *domain.Item) bool { return i.Closed && i.WinningBidID != nil })

	var won []*domain.Item
	for _, item := range closed {
		bid, err := r.bids.GetBid(ctx, *item.WinningBidID)
		if err == nil && bid.BidderID == bidderID {
			won = append(won, item)
		}
	}
	return won, nil
}

type memBids struct {
	mu   sync.Mutex
	bids []*domain.Bid
	err  error
}

func (r *memBids) CreateBid(_ context.Context, bid *domain.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	c := *bid
	r.bids = append(r.bids, &c)
	return nil
}

func (r *memBids) GetBid(_ context.Context, bidID string) (*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	for _, b := range r.bids {
		if b.ID == bidID {
			c := *b
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memBids) HighestBid(_ context.Context, itemID string, before *time.Time) (*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	var best *domain.Bid
	for _, b := range r.bids {
		if b.ItemID != itemID {
			continue
		}
		if before != nil && !b.CreatedAt.Before(*before) {
			continue
		}
		if best == nil || outranks(b, best) {
			best = b
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	c := *best
	return &c, nil
}

func outranks(a, b *domain.Bid) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func (r *memBids) ListBids(_ context.Context, itemID string) ([]*domain.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Bid
	for _, b := range r.bids {
		if b.ItemID == itemID {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return outranks(out[i], out[j]) })
	return out, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newMemUsers(users ...*domain.User) *memUsers {
	r := &memUsers{users: make(map[string]*domain.User)}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUsers) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return domain.ErrEmailTaken
		}
	}
	r.users[user.ID] = user
	return nil
}

func (r *memUsers) GetUser(_ context.Context, userID string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return u, nil
}

func (r *memUsers) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, domain.ErrNotFound
}

type memNotifications struct {
	mu            sync.Mutex
	notifications []*domain.Notification
}

func (r *memNotifications) CreateNotification(_ context.Context, n *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *n
	r.notifications = append(r.notifications, &c)
	return nil
}

func (r *memNotifications) ListUnread(_ context.Context, userID string) ([]*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for _, n := range r.notifications {
		if n.UserID == userID && n.ReadAt == nil {
			c := *n
			out = append(out, &c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memNotifications) MarkRead(_ context.Context, ids []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		for _, id := range ids {
			if n.ID == id && n.ReadAt == nil {
				t := at
				n.ReadAt = &t
			}
		}
	}
	return nil
}

func (r *memNotifications) forUser(userID string) []*domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out
}

func (r *memNotifications) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notifications)
}

type memJobs struct {
	mu   sync.Mutex
	jobs map[string]*domain.ScheduledJob
}

func newMemJobs() *memJobs {
	return &memJobs{jobs: make(map[string]*domain.ScheduledJob)}
}

func (r *memJobs) CreateJob(_ context.Context, job *domain.ScheduledJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *job
	r.jobs[job.ID] = &c
	return nil
}

func (r *memJobs) UpdateJobStatus(_ context.Context, jobID string, status domain.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[jobID]; ok {
		job.Status = status
	}
	return nil
}

func (r *memJobs) CancelJobsForItem(_ context.Context, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, job := range r.jobs {
		if job.ItemID == itemID && job.Status == domain.JobPending {
			job.Status = domain.JobCancelled
		}
	}
	return nil
}

func (r *memJobs) withStatus(itemID string, status domain.JobStatus) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, job := range r.jobs {
		if job.ItemID == itemID && job.Status == status {
			n++
		}
	}
	return n
}

// fakeRunner records jobs; tests fire them by hand.
type fakeRunner struct {
	mu        sync.Mutex
	jobs      map[string]fakeJob
	recurring []func()
	started   bool
}

type fakeJob struct {
	at time.Time
	fn func()
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{jobs: make(map[string]fakeJob)}
}

func (r *fakeRunner) Schedule(key string, runAt time.Time, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[key] = fakeJob{at: runAt, fn: fn}
	return nil
}

func (r *fakeRunner) Cancel(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.jobs[key]
	delete(r.jobs, key)
	return ok
}

func (r *fakeRunner) Pending(key string) (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[key]
	return job.at, ok
}

func (r *fakeRunner) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

func (r *fakeRunner) AddRecurring(_ string, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recurring = append(r.recurring, fn)
	return nil
}

func (r *fakeRunner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = true
}

func (r *fakeRunner) Stop() {}

// Fire runs and removes a pending job, reporting whether one existed.
func (r *fakeRunner) Fire(key string) bool {
	r.mu.Lock()
	job, ok := r.jobs[key]
	delete(r.jobs, key)
	r.mu.Unlock()

	if ok {
		job.fn()
	}
	return ok
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*domain.ItemEvent
}

func (p *fakePublisher) PublishItemEvent(_ context.Context, event *domain.ItemEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) ofType(t domain.ItemEventType) []*domain.ItemEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*domain.ItemEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fakeLeader struct{ leader bool }

func (l *fakeLeader) BecomeLeader(context.Context, string) (bool, error) { return l.leader, nil }
func (l *fakeLeader) IsLeader(context.Context, string) (bool, error)     { return l.leader, nil }
func (l *fakeLeader) ReleaseLeadership(context.Context, string) error    { return nil }

type fakeNotifier struct {
	mu    sync.Mutex
	users []string
	items []string
}

func (n *fakeNotifier) NotifyUser(_ context.Context, userID string, _ interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
	return nil
}

func (n *fakeNotifier) BroadcastToItem(_ context.Context, itemID string, _ interface{}) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, itemID)
	return nil
}

func (n *fakeNotifier) notified() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.users...)
}

// failingSender fails every notification.
type failingSender struct{}

func (failingSender) Send(context.Context, string, domain.NotificationCategory, string, string) error {
	return errStorage
}

// harness wires the real services over in-memory stores.
type harness struct {
	clock         *fakeClock
	items         *memItems
	bids          *memBids
	users         *memUsers
	notifications *memNotifications
	jobs          *memJobs
	runner        *fakeRunner
	publisher     *fakePublisher
	leader        *fakeLeader
	notifier      *fakeNotifier
	metrics       *metrics.Metrics

	pricing    *PricingService
	notify     *NotificationService
	engine     *ClosingEngine
	scheduler  *ClosingScheduler
	manager    *AuctionManager
	bidService *BidService
}

func newHarness() *harness {
	bids := &memBids{}
	h := &harness{
		clock: newFakeClock(),
		items: newMemItems(bids),
		bids:  bids,
		users: newMemUsers(
			&domain.User{ID: "seller", Email: "seller@example.com"},
			&domain.User{ID: "bidder", Email: "bidder@example.com"},
			&domain.User{ID: "other", Email: "other@example.com"},
		),
		notifications: &memNotifications{},
		jobs:          newMemJobs(),
		runner:        newFakeRunner(),
		publisher:     &fakePublisher{},
		leader:        &fakeLeader{leader: true},
		notifier:      &fakeNotifier{},
		metrics:       metrics.NewMetrics(prometheus.NewRegistry()),
	}

	log := logger.NewNop()
	h.pricing = NewPricingService(h.bids, log)
	h.notify = NewNotificationService(h.notifications, h.notifier, h.clock, h.metrics, log)
	h.engine = NewClosingEngine(h.items, h.users, h.pricing, h.notify, h.publisher, h.clock, h.metrics, log)
	h.scheduler = NewClosingScheduler(h.runner, h.engine, h.items, h.jobs, h.leader, h.clock,
		SchedulerConfig{CloseDelay: time.Second, SweepSchedule: "@every 1m", InstanceID: "test"}, h.metrics, log)
	h.manager = NewAuctionManager(h.items, h.users, h.scheduler, h.publisher, h.clock,
		ManagerConfig{DefaultDuration: 24 * time.Hour, PageSize: 10}, log)
	h.bidService = NewBidService(h.items, h.bids, h.users, h.pricing, h.publisher, h.clock, h.metrics, log)
	return h
}

// addItem stores an item closing at closesAt, bypassing the write path.
func (h *harness) addItem(id string, startingBid int64, closesAt time.Time) *domain.Item {
	item := &domain.Item{
		ID:          id,
		Title:       "Item " + id,
		StartingBid: startingBid,
		SellerID:    "seller",
		CreatedAt:   closesAt.Add(-24 * time.Hour),
		ClosesAt:    &closesAt,
	}
	_ = h.items.CreateItem(context.Background(), item)
	return copyItem(item)
}

func (h *harness) addBid(id, itemID, bidderID string, amount int64, at time.Time) {
	_ = h.bids.CreateBid(context.Background(), &domain.Bid{
		ID:        id,
		ItemID:    itemID,
		BidderID:  bidderID,
		Amount:    amount,
		CreatedAt: at,
	})
}

func (h *harness) reload(id string) *domain.Item {
	item, err := h.items.GetItem(context.Background(), id)
	if err != nil {
		panic(err)
	}
	return item
}
