package db_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"avatarcast/db"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newDB(t *testing.T) *db.DB {
	t.Helper()

	d, err := db.New(context.Background(), &db.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)

	t.Cleanup(func() { _ = d.Close() })

	return d
}

func TestRunLifecycle(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()
	d := newDB(t)

	run := &db.Run{ID: uuid.NewString(), Text: "hello"}
	assert.NoError(d.CreateRun(ctx, run))
	assert.Equal(db.RunStatusCreated, run.Status)

	got, err := d.GetRun(ctx, run.ID)
	assert.NoError(err)
	assert.Equal("hello", got.Text)
	assert.Equal(db.RunStatusCreated, got.Status)
	assert.WithinDuration(run.CreatedAt, got.CreatedAt, time.Millisecond)

	got.Status = db.RunStatusDone
	got.AudioFile = "speech.wav"
	got.VideoFile = "final.mp4"
	got.ShareURL = "https://s3/x"
	assert.NoError(d.UpdateRun(ctx, got))

	again, err := d.GetRun(ctx, run.ID)
	assert.NoError(err)
	assert.Equal(db.RunStatusDone, again.Status)
	assert.Equal("speech.wav", again.AudioFile)
	assert.Equal("final.mp4", again.VideoFile)
	assert.Equal("https://s3/x", again.ShareURL)
	assert.False(again.UpdatedAt.Before(again.CreatedAt))
}

func TestGetRunNoRows(t *testing.T) {
	d := newDB(t)

	_, err := d.GetRun(context.Background(), uuid.NewString())
	require.Error(t, err)
	require.Equal(t, db.ErrCodeNoRows, db.ErrCode(err))

	err = d.UpdateRun(context.Background(), &db.Run{ID: uuid.NewString(), Status: db.RunStatusDone})
	require.Equal(t, db.ErrCodeNoRows, db.ErrCode(err))

	_, err = d.LatestRun(context.Background())
	require.Equal(t, db.ErrCodeNoRows, db.ErrCode(err))
}

func TestLatestAndListRuns(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()
	d := newDB(t)

	base := time.Now().Add(-time.Hour)
	ids := make([]string, 3)

	for i := range ids {
		ids[i] = uuid.NewString()
		assert.NoError(d.CreateRun(ctx, &db.Run{ID: ids[i], CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}

	latest, err := d.LatestRun(ctx)
	assert.NoError(err)
	assert.Equal(ids[2], latest.ID)

	runs, err := d.ListRuns(ctx, 2)
	assert.NoError(err)
	assert.Len(runs, 2)
	assert.Equal(ids[2], runs[0].ID)
	assert.Equal(ids[1], runs[1].ID)
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for range 2 {
		d, err := db.New(context.Background(), &db.Config{Path: path})
		require.NoError(t, err)
		require.NoError(t, d.Close())
	}
}

func TestDeleteRunsBefore(t *testing.T) {
	assert := require.New(t)
	ctx := context.Background()
	d := newDB(t)

	idle := &db.Run{ID: uuid.NewString(), Status: db.RunStatusDone}
	busy := &db.Run{ID: uuid.NewString(), Status: db.RunStatusVideoRunning}
	assert.NoError(d.CreateRun(ctx, idle))
	assert.NoError(d.CreateRun(ctx, busy))

	ids, err := d.DeleteRunsBefore(ctx, time.Now().Add(-time.Hour))
	assert.NoError(err)
	assert.Empty(ids)

	ids, err = d.DeleteRunsBefore(ctx, time.Now().Add(time.Hour))
	assert.NoError(err)
	assert.Equal([]string{idle.ID}, ids)

	_, err = d.GetRun(ctx, idle.ID)
	assert.Equal(db.ErrCodeNoRows, db.ErrCode(err))

	_, err = d.GetRun(ctx, busy.ID)
	assert.NoError(err)
}
