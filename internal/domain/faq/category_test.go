package faq

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/persian-faqbot/pkg/errors"
)

func TestStoreCategoryLifecycle(t *testing.T) {
	store := NewStore(newStubRepo(), &stubEmbedder{}, discardLogger())
	ctx := context.Background()

	shipping, err := store.CreateCategory(ctx, CategoryRequest{Name: " ارسال ", Slug: "Shipping"})
	require.NoError(t, err)
	require.Equal(t, "ارسال", shipping.Name)
	require.Equal(t, "shipping", shipping.Slug)

	_, err = store.CreateCategory(ctx, CategoryRequest{Name: "حمل", Slug: "shipping"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	renamed, err := store.UpdateCategory(ctx, shipping.ID, CategoryRequest{Name: "ارسال کالا", Slug: "delivery"})
	require.NoError(t, err)
	require.Equal(t, "delivery", renamed.Slug)

	_, err = store.UpdateCategory(ctx, 999, CategoryRequest{Name: "x", Slug: "x"})
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	categories, err := store.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, categories, 1)

	require.NoError(t, store.DeleteCategory(ctx, shipping.ID))
	require.True(t, apperrors.IsCode(store.DeleteCategory(ctx, shipping.ID), apperrors.CodeNotFound))
}

func TestCategoryRequestValidation(t *testing.T) {
	store := NewStore(newStubRepo(), &stubEmbedder{}, discardLogger())
	for _, req := range []CategoryRequest{
		{Name: "", Slug: "ok"},
		{Name: "ارسال", Slug: ""},
		{Name: "ارسال", Slug: "ارسال"},
		{Name: "ارسال", Slug: "bad--slug"},
		{Name: "ارسال", Slug: "-lead"},
	} {
		_, err := store.CreateCategory(context.Background(), req)
		require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput), "request %+v", req)
	}
}

func TestStoreEntriesCarryCategory(t *testing.T) {
	repo := newStubRepo()
	store := NewStore(repo, &stubEmbedder{}, discardLogger())
	ctx := context.Background()

	billing, err := store.CreateCategory(ctx, CategoryRequest{Name: "پرداخت", Slug: "billing"})
	require.NoError(t, err)

	missing := int64(404)
	_, err = store.Upsert(ctx, UpsertRequest{Question: "روش پرداخت", Answer: "کارت", CategoryID: &missing})
	require.True(t, apperrors.IsCode(err, apperrors.CodeInvalidInput))

	paid, err := store.Upsert(ctx, UpsertRequest{Question: "روش پرداخت", Answer: "کارت", CategoryID: &billing.ID})
	require.NoError(t, err)
	require.Equal(t, billing.ID, *paid.CategoryID)
	plain, err := store.Upsert(ctx, UpsertRequest{Question: "ساعت کاری", Answer: "۹ تا ۵"})
	require.NoError(t, err)
	require.Nil(t, plain.CategoryID)

	// re-upserting without a category keeps the existing one
	again, err := store.Upsert(ctx, UpsertRequest{Question: "روش پرداخت", Answer: "کارت یا نقد"})
	require.NoError(t, err)
	require.Equal(t, billing.ID, *again.CategoryID)

	inBilling, err := store.ListByCategory(ctx, billing.ID)
	require.NoError(t, err)
	require.Len(t, inBilling, 1)
	require.Equal(t, paid.ID, inBilling[0].ID)

	_, err = store.ListByCategory(ctx, missing)
	require.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	moved, err := store.Update(ctx, plain.ID, UpdateRequest{CategoryID: &billing.ID})
	require.NoError(t, err)
	require.Equal(t, billing.ID, *moved.CategoryID)

	none := int64(0)
	cleared, err := store.Update(ctx, plain.ID, UpdateRequest{CategoryID: &none})
	require.NoError(t, err)
	require.Nil(t, cleared.CategoryID)

	require.NoError(t, store.DeleteCategory(ctx, billing.ID))
	detached, err := store.Get(ctx, paid.ID)
	require.NoError(t, err)
	require.Nil(t, detached.CategoryID)
}
