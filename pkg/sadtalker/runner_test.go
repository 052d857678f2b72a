package sadtalker_test

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"avatarcast/pkg/sadtalker"

	"github.com/stretchr/testify/require"
)

// fakeInference stands in for inference.py: it records its arguments and environment and writes
// an mp4 into result_dir/<stamp>/ the way upstream does.
const fakeInference = `
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "--result_dir" ]; then out="$2"; fi
  shift
done
mkdir -p "$out/2024_01_01_00.00.00"
echo "$TORCH_HOME" > "$out/torch_home.txt"
echo "video" > "$out/2024_01_01_00.00.00.mp4"
`

const failingInference = `
echo "No face detected in source image" >&2
exit 3
`

const silentInference = `exit 0`

type fixture struct {
	dir    string
	ck     string
	cfg    string
	image  string
	audio  string
	script string
}

func newFixture(t *testing.T, script string) *fixture {
	t.Helper()

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	dir := t.TempDir()
	f := &fixture{
		dir:    dir,
		ck:     filepath.Join(dir, "checkpoints"),
		cfg:    filepath.Join(dir, "src", "config"),
		image:  filepath.Join(dir, "avatar.png"),
		audio:  filepath.Join(dir, "speech.wav"),
		script: filepath.Join(dir, "inference.sh"),
	}

	seed(t, f.ck, f.cfg)
	touch(t, f.image)
	touch(t, f.audio)
	require.NoError(t, os.WriteFile(f.script, []byte(script), 0o755))

	return f
}

func (f *fixture) runner() *sadtalker.Runner {
	return sadtalker.New(&sadtalker.Config{
		Python:        "sh",
		Root:          f.dir,
		Script:        f.script,
		CheckpointDir: f.ck,
		ConfigDir:     f.cfg,
	}, nil)
}

func TestGenerate(t *testing.T) {
	assert := require.New(t)
	f := newFixture(t, fakeInference)

	resultDir := filepath.Join(f.dir, "runs", "a")

	video, err := f.runner().Generate(context.Background(), &sadtalker.Request{
		SourceImage: f.image,
		DrivenAudio: f.audio,
		ResultDir:   resultDir,
		Still:       true,
	})
	assert.NoError(err)
	assert.Equal(filepath.Join(resultDir, "2024_01_01_00.00.00.mp4"), video)

	// inputs are copied, not moved
	assert.FileExists(f.image)
	assert.FileExists(filepath.Join(resultDir, "input", "avatar.png"))
	assert.FileExists(filepath.Join(resultDir, "input", "speech.wav"))

	torchHome, err := os.ReadFile(filepath.Join(resultDir, "torch_home.txt"))
	assert.NoError(err)
	assert.Equal(f.ck, strings.TrimSpace(string(torchHome)))
}

func TestGenerateMissingCheckpointsRetries(t *testing.T) {
	assert := require.New(t)
	f := newFixture(t, fakeInference)

	mapping := filepath.Join(f.ck, "mapping_00109-model.pth.tar")
	assert.NoError(os.Remove(mapping))

	runner := f.runner()
	req := &sadtalker.Request{
		SourceImage: f.image,
		DrivenAudio: f.audio,
		ResultDir:   filepath.Join(f.dir, "runs", "b"),
	}

	_, err := runner.Generate(context.Background(), req)
	assert.ErrorIs(err, sadtalker.ErrCheckpointsMissing)
	assert.Contains(err.Error(), "mapping_00109-model.pth.tar")

	touch(t, mapping)

	_, err = runner.Generate(context.Background(), req)
	assert.NoError(err)
}

func TestGenerateProcessFailure(t *testing.T) {
	f := newFixture(t, failingInference)

	_, err := f.runner().Generate(context.Background(), &sadtalker.Request{
		SourceImage: f.image,
		DrivenAudio: f.audio,
		ResultDir:   filepath.Join(f.dir, "runs", "c"),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "No face detected")
}

func TestGenerateNoVideo(t *testing.T) {
	f := newFixture(t, silentInference)

	_, err := f.runner().Generate(context.Background(), &sadtalker.Request{
		SourceImage: f.image,
		DrivenAudio: f.audio,
		ResultDir:   filepath.Join(f.dir, "runs", "d"),
	})
	require.ErrorIs(t, err, sadtalker.ErrNoVideo)
}

func TestGenerateConcurrentCallsSerialize(t *testing.T) {
	f := newFixture(t, fakeInference)
	runner := f.runner()

	var wg sync.WaitGroup
	errs := make([]error, 4)

	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			_, errs[i] = runner.Generate(context.Background(), &sadtalker.Request{
				SourceImage: f.image,
				DrivenAudio: f.audio,
				ResultDir:   filepath.Join(f.dir, "runs", "parallel", string(rune('a'+i))),
			})
		}(i)
	}

	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
}

func TestArgs(t *testing.T) {
	assert := require.New(t)

	runner := sadtalker.New(&sadtalker.Config{Device: "cpu", OldVersion: true}, nil)
	req := sadtalker.Request{ResultDir: "/out", Still: true, Enhancer: true}.WithDefaults()

	args := runner.Args(&req, &sadtalker.Paths{CheckpointDir: "/ck"}, "/out/input/a.png", "/out/input/a.wav")
	joined := strings.Join(args, " ")

	assert.Equal("inference.py", args[0])
	assert.Contains(joined, "--driven_audio /out/input/a.wav --source_image /out/input/a.png --result_dir /out")
	assert.Contains(joined, "--preprocess full --batch_size 2 --size 256 --pose_style 0 --expression_scale 1")
	assert.Contains(joined, "--still")
	assert.Contains(joined, "--enhancer gfpgan")
	assert.Contains(joined, "--old_version")
	assert.Contains(joined, "--cpu")
}

func TestGenerateRejectsForeignConfigDir(t *testing.T) {
	assert := require.New(t)
	f := newFixture(t, fakeInference)

	other := filepath.Join(f.dir, "other-config")
	seed(t, f.ck, other)

	runner := sadtalker.New(&sadtalker.Config{
		Python:        "sh",
		Root:          f.dir,
		Script:        f.script,
		CheckpointDir: f.ck,
		ConfigDir:     other,
	}, nil)

	_, err := runner.Generate(context.Background(), &sadtalker.Request{
		SourceImage: f.image,
		DrivenAudio: f.audio,
		ResultDir:   filepath.Join(f.dir, "runs", "c"),
	})
	assert.ErrorIs(err, sadtalker.ErrConfigDir)
}
