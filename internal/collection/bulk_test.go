package collection_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bmsj23/animomart-client/internal/collection"
	"github.com/bmsj23/animomart-client/internal/testutil"
)

func threeItemCart(t *testing.T) *cartFixture {
	t.Helper()
	return newCartFixture(t,
		entry("p1", "Iskolar Hoodie", 899, 1, intp(5)),
		entry("p2", "Animo Tumbler", 350, 2, intp(9)),
		entry("p3", "Green Archer Cap", 250, 1, intp(3)),
	)
}

func entityIDs(c collection.Collection) []string {
	return c.EntityIDs()
}

func TestRemoveBatch_AllSucceed(t *testing.T) {
	f := threeItemCart(t)

	res := f.store.RemoveBatch(context.Background(), []string{"p1", "p3"}, collection.BulkOptions{})

	require.NoError(t, res.Err())
	assert.Equal(t, []string{"p1", "p3"}, res.Succeeded)
	assert.Equal(t, []string{"p2"}, entityIDs(f.store.Snapshot()))
	assert.Equal(t, 2, f.remote.CallCount("delete"))
}

func TestRemoveBatch_PerItemRevertsOnlyFailures(t *testing.T) {
	f := threeItemCart(t)
	f.remote.FailWith("delete:p2", errors.New("boom"))

	res := f.store.RemoveBatch(context.Background(),
		[]string{"p1", "p2", "p3"}, collection.BulkOptions{})

	require.Error(t, res.Err())
	assert.Equal(t, []string{"p1", "p3"}, res.Succeeded)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "p2", res.Failed[0].EntityID)
	assert.False(t, res.RolledBack)

	// Only the failed item came back.
	assert.Equal(t, []string{"p2"}, entityIDs(f.store.Snapshot()))
}

func TestRemoveBatch_AtomicRollsBackWholeBatch(t *testing.T) {
	f := threeItemCart(t)
	f.remote.FailWith("delete:p2", errors.New("boom"))

	res := f.store.RemoveBatch(context.Background(),
		[]string{"p1", "p2", "p3"}, collection.BulkOptions{Atomic: true})

	require.Error(t, res.Err())
	assert.True(t, res.RolledBack)

	// All three items reappear, none remain partially removed.
	assert.Equal(t, []string{"p1", "p2", "p3"}, entityIDs(f.store.Snapshot()))
	assert.Equal(t, 3, f.remote.CallCount("delete"))
}

func TestRemoveBatch_SkipsAbsentIDs(t *testing.T) {
	f := threeItemCart(t)

	res := f.store.RemoveBatch(context.Background(),
		[]string{"ghost", "p1"}, collection.BulkOptions{})

	require.NoError(t, res.Err())
	assert.Equal(t, []string{"p1"}, res.Attempted)
	assert.Equal(t, 1, f.remote.CallCount("delete"))
}

func TestRemoveBatch_EmptyBatchIsNoOp(t *testing.T) {
	f := threeItemCart(t)

	res := f.store.RemoveBatch(context.Background(), nil, collection.BulkOptions{})

	require.NoError(t, res.Err())
	assert.Empty(t, res.Attempted)
	assert.Equal(t, 0, f.remote.CallCount("delete"))
}

func newWishlistStore(t *testing.T, capacity int) (*collection.Store, *testutil.FakeRemote) {
	t.Helper()
	remote := testutil.NewFakeRemote()
	s := collection.New(collection.KindWishlist, "owner-1", remote,
		collection.WithCapacity(capacity),
	)
	require.NoError(t, s.Load(context.Background()))
	return s, remote
}

func TestMoveBatch_MovesItemsAcrossStores(t *testing.T) {
	f := threeItemCart(t)
	wish, wishRemote := newWishlistStore(t, 20)

	res, err := f.store.MoveBatch(context.Background(), wish,
		[]string{"p1", "p2"}, collection.BulkOptions{})

	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, res.Succeeded)
	assert.Equal(t, []string{"p3"}, entityIDs(f.store.Snapshot()))
	assert.Equal(t, []string{"p1", "p2"}, entityIDs(wish.Snapshot()))

	// The moved items land with their full entity snapshot, not placeholders.
	assert.Equal(t, "Iskolar Hoodie", wish.Snapshot().Items[0].Entity.Name)
	assert.Equal(t, 2, wishRemote.CallCount("create"))
	assert.Equal(t, 2, f.remote.CallCount("delete"))
}

func TestMoveBatch_CapacityRejectedBeforeAnyCall(t *testing.T) {
	f := threeItemCart(t)
	wish, wishRemote := newWishlistStore(t, 1)

	_, err := f.store.MoveBatch(context.Background(), wish,
		[]string{"p1", "p2"}, collection.BulkOptions{})

	require.Error(t, err)
	assert.True(t, collection.IsCapacityError(err))
	assert.Len(t, f.store.Snapshot().Items, 3)
	assert.Empty(t, wish.Snapshot().Items)
	assert.Equal(t, 0, wishRemote.CallCount("create"))
	assert.Equal(t, 0, f.remote.CallCount("delete"))
}

func TestMoveBatch_AtomicFailureRestoresBothSides(t *testing.T) {
	f := threeItemCart(t)
	wish, wishRemote := newWishlistStore(t, 20)
	wishRemote.FailWith("create:p2", errors.New("boom"))

	res, err := f.store.MoveBatch(context.Background(), wish,
		[]string{"p1", "p2"}, collection.BulkOptions{Atomic: true})

	require.Error(t, err)
	assert.True(t, res.RolledBack)
	assert.Equal(t, []string{"p1", "p2", "p3"}, entityIDs(f.store.Snapshot()))
	assert.Empty(t, wish.Snapshot().Items)
}

func TestMoveBatch_AtomicFailureKeepsPriorTargetItems(t *testing.T) {
	f := threeItemCart(t)
	wishRemote := testutil.NewFakeRemote()
	wishRemote.Entries = []collection.Entry{entry("w1", "Lady Animo Lanyard", 120, 1, nil)}
	wish := collection.New(collection.KindWishlist, "owner-1", wishRemote,
		collection.WithCapacity(20),
	)
	require.NoError(t, wish.Load(context.Background()))
	wishRemote.FailWith("create:p1", errors.New("boom"))

	res, err := f.store.MoveBatch(context.Background(), wish,
		[]string{"p1", "p2"}, collection.BulkOptions{Atomic: true})

	require.Error(t, err)
	assert.True(t, res.RolledBack)
	assert.Equal(t, []string{"p1", "p2", "p3"}, entityIDs(f.store.Snapshot()))

	// The rollback restores the wishlist to what it held before the batch,
	// with no stray placeholders from the attempted moves.
	assert.Equal(t, []string{"w1"}, entityIDs(wish.Snapshot()))
}

func TestMoveBatch_PerItemFailureRevertsOnlyThatItem(t *testing.T) {
	f := threeItemCart(t)
	wish, wishRemote := newWishlistStore(t, 20)
	wishRemote.FailWith("create:p1", errors.New("boom"))

	res, err := f.store.MoveBatch(context.Background(), wish,
		[]string{"p1", "p2"}, collection.BulkOptions{})

	require.Error(t, err)
	assert.Equal(t, []string{"p2"}, res.Succeeded)

	// p1 returns to the cart and never lands in the wishlist; p2 moved.
	assert.Equal(t, []string{"p3", "p1"}, entityIDs(f.store.Snapshot()))
	assert.Equal(t, []string{"p2"}, entityIDs(wish.Snapshot()))
}
