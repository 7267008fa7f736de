package media

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ccollins476ad/awemescrape/aweme"
	"github.com/ccollins476ad/awemescrape/download"
	log "github.com/sirupsen/logrus"
)

// Job kinds, also used as log fields and metric labels.
const (
	KindCover = "cover"
	KindVideo = "video"
	KindMusic = "music"
	KindImage = "image"
	KindLink  = "link"
)

// Sub-folders of a record folder.
const (
	CoverDir  = "cover"
	VideoDir  = "video"
	MusicDir  = "mp3"
	ImagesDir = "images"
)

// Planner expands feed records into download jobs.
type Planner struct {
	Quality       Quality
	MinValidBytes int64 // Default: download.DefaultMinValidBytes
}

// group is one URL list of a record and its naming scheme.
type group struct {
	kind   string
	dir    string
	urls   []string
	many   func(i int) string // Name when every variant is downloaded.
	single string             // Name when one variant is selected.
}

// Plan returns the jobs for one record read from a feed file in feedDir. The
// cover, video, music and image groups are planned independently; a group
// that is empty, malformed or lacks the selected variant contributes no jobs.
// Only URLs starting with "http" produce jobs.
func (p Planner) Plan(feedDir string, r aweme.Record) []download.Job {
	folder := RecordFolder(feedDir, r)
	desc := SanitizeDescription(r.Desc)

	groups := []group{
		{
			kind:   KindCover,
			dir:    CoverDir,
			urls:   r.CoverURLs,
			many:   func(i int) string { return fmt.Sprintf("cover_%d.jpg", i) },
			single: "cover.jpg",
		},
		{
			kind:   KindVideo,
			dir:    VideoDir,
			urls:   r.VideoURLs,
			many:   func(i int) string { return fmt.Sprintf("%s_%d.mp4", desc, i) },
			single: desc + ".mp4",
		},
		{
			kind:   KindMusic,
			dir:    MusicDir,
			urls:   r.MusicURLs,
			many:   func(i int) string { return fmt.Sprintf("%s_%d.mp3", desc, i) },
			single: desc + ".mp3",
		},
		{
			kind:   KindImage,
			dir:    ImagesDir,
			urls:   r.ImageURLs,
			many:   func(i int) string { return fmt.Sprintf("%s_%d.jpg", desc, i+1) },
			single: desc + ".jpg",
		},
	}

	var jobs []download.Job
	for _, g := range groups {
		jobs = append(jobs, p.planGroup(r, folder, g)...)
	}

	for i, set := range r.ImageSets {
		g := group{
			kind: KindImage,
			dir:  ImagesDir,
			urls: set,
			many: func(v int) string { return fmt.Sprintf("%s_%d_%d.jpg", desc, i+1, v) },
			// One variant per attachment keeps the attachments apart.
			single: fmt.Sprintf("%s_%d.jpg", desc, i+1),
		}
		jobs = append(jobs, p.planGroup(r, folder, g)...)
	}

	return jobs
}

func (p Planner) planGroup(r aweme.Record, folder string, g group) []download.Job {
	if len(g.urls) == 0 {
		return nil
	}

	idx, ok := p.Quality.Select(len(g.urls))
	if !ok {
		log.WithFields(log.Fields{
			"aweme_id": r.ID,
			"kind":     g.kind,
			"quality":  p.Quality.String(),
		}).Warnf("no such quality variant: have %d, skipping group", len(g.urls))
		return nil
	}

	var jobs []download.Job
	for _, i := range idx {
		u := g.urls[i]
		if !strings.HasPrefix(u, "http") {
			continue
		}

		name := g.single
		if p.Quality.IsAll() {
			name = g.many(i)
		}

		jobs = append(jobs, p.newJob(u, filepath.Join(folder, g.dir, name), g.kind))
		log.Debugf("planned %s job: %s", g.kind, u)
	}

	return jobs
}

func (p Planner) newJob(u, path, kind string) download.Job {
	job := download.NewJob(u, path, kind)
	if p.MinValidBytes > 0 {
		job.MinValidBytes = p.MinValidBytes
	}
	return job
}
