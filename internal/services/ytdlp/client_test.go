package ytdlp

import (
	"context"
	"errors"
	"testing"

	"github.com/amaumene/ytarr/internal/models"
	"github.com/amaumene/ytarr/internal/services/process"
	"github.com/amaumene/ytarr/internal/utils"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRunner struct {
	calls  []process.Command
	lines  []string
	result *process.Result
	err    error
}

func (r *scriptedRunner) Run(ctx context.Context, cmd process.Command) (*process.Result, error) {
	r.calls = append(r.calls, cmd)
	for _, line := range r.lines {
		if cmd.OnLine != nil {
			cmd.OnLine(line)
		}
	}
	res := r.result
	if res == nil {
		res = &process.Result{}
	}
	return res, r.err
}

func newTestClient(runner process.Runner, fs afero.Fs) *Client {
	return &Client{
		runner: runner,
		fs:     fs,
		binDir: "/opt/ytarr/bin",
		goos:   "linux",
		logger: utils.NewNopLogger(),
	}
}

func TestBinaryResolutionOrder(t *testing.T) {
	fs := afero.NewMemMapFs()
	c := newTestClient(&scriptedRunner{}, fs)

	assert.Equal(t, "yt-dlp", c.Binary())

	require.NoError(t, afero.WriteFile(fs, "/opt/ytarr/bin/yt-dlp", []byte("bin"), 0755))
	assert.Equal(t, "/opt/ytarr/bin/yt-dlp", c.Binary())

	c.overridePath = "/custom/yt-dlp"
	assert.Equal(t, "/opt/ytarr/bin/yt-dlp", c.Binary(), "missing override is ignored")

	require.NoError(t, afero.WriteFile(fs, "/custom/yt-dlp", []byte("bin"), 0755))
	assert.Equal(t, "/custom/yt-dlp", c.Binary())
}

func TestDownloadArgs(t *testing.T) {
	opts := DownloadOptions{
		URL:              "https://youtu.be/abc",
		OutputPath:       "/out/abc.mp4",
		FormatExpression: "22",
		Profile:          models.ProfileIOS,
	}

	args := opts.Args()
	assert.Equal(t, "https://youtu.be/abc", args[len(args)-1])
	assert.Subset(t, args, []string{"-o", "/out/abc.mp4", "-f", "22", "youtube:player_client=ios"})
	assert.NotContains(t, args, "--ffmpeg-location")
	assert.NotContains(t, args, "--no-part")

	opts.MuxerPath = "/opt/ytarr/bin/ffmpeg"
	opts.Container = "mkv"
	opts.LastResort = true
	args = opts.Args()
	assert.Subset(t, args, []string{"--ffmpeg-location", "/opt/ytarr/bin/ffmpeg", "--merge-output-format", "mkv", "--embed-thumbnail"})
	assert.Subset(t, args, []string{"--no-part", "--prefer-insecure", "--referer", lastResortReferer})

	opts.MuxerPath = models.MuxerOnPath
	opts.LastResort = false
	args = opts.Args()
	assert.NotContains(t, args, "--ffmpeg-location", "ffmpeg on PATH is found by yt-dlp itself")
	assert.Subset(t, args, []string{"--merge-output-format", "mkv", "--embed-thumbnail", "--prefer-ffmpeg", "--postprocessor-args"})
}

func TestDownloadForwardsProgress(t *testing.T) {
	runner := &scriptedRunner{lines: []string{
		"[youtube] abc: Downloading webpage",
		"[download]  10.0% of 5.00MiB at 1.00MiB/s ETA 00:04",
		"[download] 100.0% of 5.00MiB in 00:05",
	}}
	c := newTestClient(runner, afero.NewMemMapFs())

	var seen []float64
	err := c.Download(context.Background(), DownloadOptions{URL: "u", OutputPath: "/o.mp4"}, func(p Progress) {
		seen = append(seen, p.Percent)
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 100}, seen)
	assert.Equal(t, "yt-dlp", runner.calls[0].Name)
}

func TestDownloadClassifiesMuxerMissing(t *testing.T) {
	runner := &scriptedRunner{
		result: &process.Result{ExitCode: 1, Stderr: "ERROR: Postprocessing: ffprobe and ffmpeg not found. Please install or provide the path"},
		err:    errors.New("exit status 1"),
	}
	c := newTestClient(runner, afero.NewMemMapFs())

	err := c.Download(context.Background(), DownloadOptions{URL: "u"}, nil)
	require.Error(t, err)
	assert.True(t, IsMuxerMissing(err))
	assert.ErrorIs(t, err, models.ErrDependencyUnavailable)

	var extErr *ExtractorError
	require.ErrorAs(t, err, &extErr)
	assert.Equal(t, 1, extErr.ExitCode)
}

func TestDownloadClassifiesFormatUnavailable(t *testing.T) {
	runner := &scriptedRunner{
		result: &process.Result{ExitCode: 1, Stderr: "ERROR: [youtube] abc: Requested format is not available"},
		err:    errors.New("exit status 1"),
	}
	c := newTestClient(runner, afero.NewMemMapFs())

	err := c.Download(context.Background(), DownloadOptions{URL: "u"}, nil)
	assert.ErrorIs(t, err, models.ErrFormatUnavailable)
	assert.False(t, IsMuxerMissing(err))
}

func TestDumpJSON(t *testing.T) {
	runner := &scriptedRunner{result: &process.Result{
		Stdout: `{"id":"abc","title":"A video","webpage_url":"https://www.youtube.com/watch?v=abc","thumbnail":"https://i.ytimg.com/abc.jpg","duration":212.5,"channel":"Chan","height":1080}` + "\n",
	}}
	c := newTestClient(runner, afero.NewMemMapFs())

	meta, err := c.DumpJSON(context.Background(), "https://youtu.be/abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", meta.ID)
	assert.Equal(t, "Chan", meta.Channel)
	assert.Equal(t, 212.5, meta.Duration)
	assert.Contains(t, runner.calls[0].Args, "--dump-json")

	runner.result = &process.Result{Stdout: "not json"}
	_, err = c.DumpJSON(context.Background(), "https://youtu.be/abc")
	assert.ErrorIs(t, err, models.ErrExtractionFailure)
}

func TestUpdate(t *testing.T) {
	runner := &scriptedRunner{result: &process.Result{Stdout: "Updating to stable@2024.08.06\nUpdated to version 2024.08.06"}}
	c := newTestClient(runner, afero.NewMemMapFs())

	updated, err := c.Update(context.Background())
	require.NoError(t, err)
	assert.True(t, updated)

	runner.result = &process.Result{Stdout: "yt-dlp is up to date (stable@2024.08.06)"}
	updated, err = c.Update(context.Background())
	require.NoError(t, err)
	assert.False(t, updated)
}
