package circulation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
	tx *mockTx
}

func (m *mockRepo) FindCopy(ctx context.Context, id int64) (*BookCopy, error) {
	args := m.Called(ctx, id)
	cp, _ := args.Get(0).(*BookCopy)
	return cp, args.Error(1)
}
func (m *mockRepo) FindRequest(ctx context.Context, id int64) (*IssueRequest, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*IssueRequest)
	return r, args.Error(1)
}
func (m *mockRepo) FindRequestByULID(ctx context.Context, ulid string) (*IssueRequest, error) {
	args := m.Called(ctx, ulid)
	r, _ := args.Get(0).(*IssueRequest)
	return r, args.Error(1)
}
func (m *mockRepo) FindIssue(ctx context.Context, id int64) (*Issue, error) {
	args := m.Called(ctx, id)
	i, _ := args.Get(0).(*Issue)
	return i, args.Error(1)
}
func (m *mockRepo) FindIssueByULID(ctx context.Context, ulid string) (*Issue, error) {
	args := m.Called(ctx, ulid)
	i, _ := args.Get(0).(*Issue)
	return i, args.Error(1)
}
func (m *mockRepo) FindRequests(ctx context.Context, f RequestFilter, p Page) ([]IssueRequest, int64, error) {
	args := m.Called(ctx, f, p)
	items, _ := args.Get(0).([]IssueRequest)
	return items, args.Get(1).(int64), args.Error(2)
}
func (m *mockRepo) FindIssues(ctx context.Context, f IssueFilter, p Page) ([]Issue, int64, error) {
	args := m.Called(ctx, f, p)
	items, _ := args.Get(0).([]Issue)
	return items, args.Get(1).(int64), args.Error(2)
}

// RunAtomic は fn を mockTx で実行し、その結果を返す
func (m *mockRepo) RunAtomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.Called(ctx)
	return fn(ctx, m.tx)
}

type mockTx struct{ mock.Mock }

func (m *mockTx) FindCopy(ctx context.Context, id int64) (*BookCopy, error) {
	args := m.Called(ctx, id)
	cp, _ := args.Get(0).(*BookCopy)
	return cp, args.Error(1)
}
func (m *mockTx) FindRequest(ctx context.Context, id int64) (*IssueRequest, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*IssueRequest)
	return r, args.Error(1)
}
func (m *mockTx) FindRequestByULID(ctx context.Context, ulid string) (*IssueRequest, error) {
	args := m.Called(ctx, ulid)
	r, _ := args.Get(0).(*IssueRequest)
	return r, args.Error(1)
}
func (m *mockTx) FindIssue(ctx context.Context, id int64) (*Issue, error) {
	args := m.Called(ctx, id)
	i, _ := args.Get(0).(*Issue)
	return i, args.Error(1)
}
func (m *mockTx) FindIssueByULID(ctx context.Context, ulid string) (*Issue, error) {
	args := m.Called(ctx, ulid)
	i, _ := args.Get(0).(*Issue)
	return i, args.Error(1)
}
func (m *mockTx) BookExists(ctx context.Context, bookID int64) (bool, error) {
	args := m.Called(ctx, bookID)
	return args.Bool(0), args.Error(1)
}
func (m *mockTx) FindPendingRequest(ctx context.Context, userID, bookID int64) (*IssueRequest, error) {
	args := m.Called(ctx, userID, bookID)
	r, _ := args.Get(0).(*IssueRequest)
	return r, args.Error(1)
}
func (m *mockTx) InsertRequest(ctx context.Context, r *IssueRequest) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockTx) UpdateRequestStatus(ctx context.Context, id int64, status RequestStatus) error {
	return m.Called(ctx, id, status).Error(0)
}
func (m *mockTx) CountActiveIssues(ctx context.Context, copyID int64) (int, error) {
	args := m.Called(ctx, copyID)
	return args.Int(0), args.Error(1)
}
func (m *mockTx) InsertIssue(ctx context.Context, i *Issue) error {
	return m.Called(ctx, i).Error(0)
}
func (m *mockTx) CloseIssue(ctx context.Context, id int64, returnedAt time.Time, fine decimal.Decimal) (bool, error) {
	args := m.Called(ctx, id, returnedAt, fine)
	return args.Bool(0), args.Error(1)
}
func (m *mockTx) SwapCopyStatus(ctx context.Context, copyID int64, from, to CopyStatus) (bool, error) {
	args := m.Called(ctx, copyID, from, to)
	return args.Bool(0), args.Error(1)
}

func newMockService(repo *mockRepo) *Service {
	return NewService(repo, NewFinePolicy(DefaultFinePerDay),
		WithClock(&fixedClock{t: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestIssueCopy_PersistenceFailureIsInternal(t *testing.T) {
	boom := errors.New("connection reset")
	tx := &mockTx{}
	repo := &mockRepo{tx: tx}
	ctx := context.Background()

	repo.On("RunAtomic", ctx).Return()
	tx.On("FindCopy", ctx, int64(5)).Return(&BookCopy{ID: 5, BookID: 1, Status: CopyAvailable}, nil)
	tx.On("SwapCopyStatus", ctx, int64(5), CopyAvailable, CopyIssued).Return(false, boom)

	_, err := newMockService(repo).IssueCopy(ctx, admin, IssueInput{CopyID: 5, UserID: 7})
	require.Error(t, err)
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 500, ToHTTPStatus(err))

	tx.AssertNotCalled(t, "InsertIssue", mock.Anything, mock.Anything)
	tx.AssertExpectations(t)
}

func TestReturnCopy_CloseRaceIsAlreadyReturned(t *testing.T) {
	tx := &mockTx{}
	repo := &mockRepo{tx: tx}
	ctx := context.Background()
	due := time.Date(2026, 1, 29, 0, 0, 0, 0, time.UTC)

	repo.On("RunAtomic", ctx).Return()
	iss := &Issue{ID: 3, ULID: "01J0000000000000000000000A", CopyID: 5, Status: IssueIssued}
	iss.ReturnDate.Time, iss.ReturnDate.Valid = due, true
	tx.On("FindIssue", ctx, int64(3)).Return(iss, nil)
	// 読んだ後に他のリクエストが返却を済ませた
	tx.On("CloseIssue", ctx, int64(3), mock.AnythingOfType("time.Time"), mock.MatchedBy(func(d decimal.Decimal) bool {
		return d.Equal(decimal.NewFromInt(30))
	})).Return(false, nil)

	_, err := newMockService(repo).ReturnCopy(ctx, admin, "3")
	assert.Equal(t, CodeAlreadyReturned, CodeOf(err))
	tx.AssertNotCalled(t, "SwapCopyStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	tx.AssertExpectations(t)
}

func TestListIssues_PersistenceFailure(t *testing.T) {
	boom := errors.New("disk I/O error")
	repo := &mockRepo{}
	ctx := context.Background()
	repo.On("FindIssues", ctx, mock.Anything, mock.Anything).Return(nil, int64(0), boom)

	_, _, err := newMockService(repo).ListIssues(ctx, admin, IssueFilter{}, Page{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, CodeInternal, CodeOf(err))
	repo.AssertExpectations(t)
}

func TestListRequests_ForcesOwnerFilterForMembers(t *testing.T) {
	repo := &mockRepo{}
	ctx := context.Background()
	repo.On("FindRequests", ctx, mock.MatchedBy(func(f RequestFilter) bool {
		return f.UserID != nil && *f.UserID == 7
	}), Page{}).Return([]IssueRequest{}, int64(0), nil)

	_, _, err := newMockService(repo).ListRequests(ctx, member7, RequestFilter{}, Page{})
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestIssueCopy_LostSwapIsUnavailable(t *testing.T) {
	tx := &mockTx{}
	repo := &mockRepo{tx: tx}
	ctx := context.Background()

	repo.On("RunAtomic", ctx).Return()
	// 読んだ時点では available、切り替え直前に他の貸出に取られた
	tx.On("FindCopy", ctx, int64(5)).Return(&BookCopy{ID: 5, BookID: 1, Status: CopyAvailable}, nil)
	tx.On("SwapCopyStatus", ctx, int64(5), CopyAvailable, CopyIssued).Return(false, nil)

	_, err := newMockService(repo).IssueCopy(ctx, admin, IssueInput{CopyID: 5, UserID: 7})
	assert.Equal(t, CodeCopyUnavailable, CodeOf(err))
	assert.Equal(t, 409, ToHTTPStatus(err))

	tx.AssertNotCalled(t, "InsertIssue", mock.Anything, mock.Anything)
	tx.AssertExpectations(t)
}

func TestIssueCopy_DuplicateActiveIssueIsUnavailable(t *testing.T) {
	tx := &mockTx{}
	repo := &mockRepo{tx: tx}
	ctx := context.Background()

	repo.On("RunAtomic", ctx).Return()
	tx.On("FindCopy", ctx, int64(5)).Return(&BookCopy{ID: 5, BookID: 1, Status: CopyAvailable}, nil)
	tx.On("SwapCopyStatus", ctx, int64(5), CopyAvailable, CopyIssued).Return(true, nil)
	// 一意インデックスで弾かれた
	tx.On("InsertIssue", ctx, mock.AnythingOfType("*circulation.Issue")).Return(ErrDuplicate)

	_, err := newMockService(repo).IssueCopy(ctx, admin, IssueInput{CopyID: 5, UserID: 7})
	assert.Equal(t, CodeCopyUnavailable, CodeOf(err))

	tx.AssertNotCalled(t, "FindIssue", mock.Anything, mock.Anything)
	tx.AssertExpectations(t)
}

func TestSetCopyStatus_LostSwapIsInvalidTransition(t *testing.T) {
	tx := &mockTx{}
	repo := &mockRepo{tx: tx}
	ctx := context.Background()

	repo.On("RunAtomic", ctx).Return()
	tx.On("FindCopy", ctx, int64(5)).Return(&BookCopy{ID: 5, BookID: 1, Status: CopyMaintenance}, nil).Once()
	tx.On("SwapCopyStatus", ctx, int64(5), CopyMaintenance, CopyLost).Return(false, nil)

	_, err := newMockService(repo).SetCopyStatus(ctx, admin, 5, CopyLost)
	assert.Equal(t, CodeInvalidTransition, CodeOf(err))
	tx.AssertNumberOfCalls(t, "FindCopy", 1)
	tx.AssertExpectations(t)
}

type failingIDGen struct{ err error }

func (g failingIDGen) NewULID(time.Time) (string, error) { return "", g.err }

func TestIssueCopy_IDGenFailureIsInternal(t *testing.T) {
	boom := errors.New("entropy exhausted")
	repo := &mockRepo{tx: &mockTx{}}
	ctx := context.Background()

	svc := NewService(repo, NewFinePolicy(DefaultFinePerDay),
		WithIDGen(failingIDGen{err: boom}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)

	_, err := svc.IssueCopy(ctx, admin, IssueInput{CopyID: 5, UserID: 7})
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.ErrorIs(t, err, boom)

	_, err = svc.RequestBook(ctx, member7, 1)
	assert.Equal(t, CodeInternal, CodeOf(err))
	assert.ErrorIs(t, err, boom)

	repo.AssertNotCalled(t, "RunAtomic", mock.Anything)
}
