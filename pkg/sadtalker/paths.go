package sadtalker

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Paths is the set of checkpoint and config files one SadTalker run needs.
type Paths struct {
	CheckpointDir string
	ConfigDir     string

	// Checkpoint is the safetensor bundle; empty when the PTH files are used.
	Checkpoint    string
	UseSafetensor bool

	Wav2Lip       string
	Audio2Pose    string
	Audio2Exp     string
	FreeView      string
	NetRecon      string
	MappingNet    string
	BFMFittingDir string

	Audio2PoseYAML      string
	Audio2ExpYAML       string
	FaceRenderYAML      string
	FaceRenderStillYAML string

	// SelectedFaceRenderYAML is the face render config picked for the preprocess mode.
	SelectedFaceRenderYAML string
}

const (
	mappingFull = "mapping_00109-model.pth.tar"
	mappingCrop = "mapping_00229-model.pth.tar"
)

// ResolvePaths lays out checkpoint and config paths. Empty dirs default to root/checkpoints and
// root/src/config. A *.safetensors file in the checkpoint dir is preferred unless oldVersion is set,
// the one named for size (SadTalker_V0.0.2_256.safetensors) first.
func ResolvePaths(root, checkpointDir, configDir string, size int, oldVersion bool, preprocess string) (*Paths, error) {
	if checkpointDir == "" {
		checkpointDir = filepath.Join(root, "checkpoints")
	}
	if configDir == "" {
		configDir = filepath.Join(root, "src", "config")
	}

	checkpointDir, err := filepath.Abs(checkpointDir)
	if err != nil {
		return nil, fmt.Errorf("resolve checkpoint dir: %w", err)
	}

	configDir, err = filepath.Abs(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}

	p := &Paths{
		CheckpointDir: checkpointDir,
		ConfigDir:     configDir,

		Wav2Lip:    filepath.Join(checkpointDir, "wav2lip.pth"),
		Audio2Pose: filepath.Join(checkpointDir, "audio2pose.pth"),
		Audio2Exp:  filepath.Join(checkpointDir, "audio2exp.pth"),
		FreeView:   filepath.Join(checkpointDir, "facevid2vid_00189-model.pth.tar"),
		NetRecon:   filepath.Join(checkpointDir, "epoch_20.pth"),

		BFMFittingDir:       configDir,
		Audio2PoseYAML:      filepath.Join(configDir, "audio2pose.yaml"),
		Audio2ExpYAML:       filepath.Join(configDir, "audio2exp.yaml"),
		FaceRenderYAML:      filepath.Join(configDir, "facerender.yaml"),
		FaceRenderStillYAML: filepath.Join(configDir, "facerender_still.yaml"),
	}

	if !oldVersion {
		matches, err := filepath.Glob(filepath.Join(checkpointDir, "*.safetensors"))
		if err != nil {
			return nil, fmt.Errorf("glob safetensors: %w", err)
		}

		if len(matches) > 0 {
			sort.Strings(matches)
			p.Checkpoint = matches[0]
			p.UseSafetensor = true

			suffix := "_" + strconv.Itoa(size) + ".safetensors"
			for _, m := range matches {
				if strings.HasSuffix(m, suffix) {
					p.Checkpoint = m
					break
				}
			}
		}
	}

	if strings.Contains(preprocess, "full") {
		p.MappingNet = filepath.Join(checkpointDir, mappingFull)
		p.SelectedFaceRenderYAML = p.FaceRenderStillYAML
	} else {
		p.MappingNet = filepath.Join(checkpointDir, mappingCrop)
		p.SelectedFaceRenderYAML = p.FaceRenderYAML
	}

	return p, nil
}

// Required lists the files that must exist for a run with these paths.
func (p *Paths) Required() []string {
	files := make([]string, 0, 12)

	if p.UseSafetensor {
		files = append(files, p.Checkpoint)
	} else {
		files = append(files, p.Wav2Lip, p.Audio2Pose, p.Audio2Exp, p.FreeView, p.NetRecon)
	}

	return append(files,
		p.MappingNet,
		p.Audio2PoseYAML,
		p.Audio2ExpYAML,
		p.SelectedFaceRenderYAML,
	)
}

// Missing returns the required files that are not on disk.
func (p *Paths) Missing() []string {
	var missing []string

	for _, f := range p.Required() {
		if info, err := os.Stat(f); err != nil || info.IsDir() {
			missing = append(missing, f)
		}
	}

	return missing
}
