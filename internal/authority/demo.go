package authority

import "github.com/five82/storyboard/internal/gallery"

// DemoPath is the scope seeded by SeedDemo.
const DemoPath = "harbor/chapter-1"

// SeedDemo fills the server with a small storyboard so the client can run
// without a backend.
func (s *Server) SeedDemo() {
	s.SetSpeakers(gallery.SpeakerMeta{
		Colors: map[string]string{"0": "#000000", "1": "#d33682", "2": "#268bd2"},
		Names:  map[string]string{"0": "Narrator", "1": "Mira", "2": "Tomas"},
	})
	s.Seed(DemoPath,
		Image{Description: "Fog over the harbor before dawn.", Dialog: []string{"0:The harbor never slept."}},
		Image{Description: "Mira on the pier with a lantern.", Dialog: []string{"1:Did you hear the bell?", "2:Only the gulls."}},
		Image{Description: "A bell tower, half hidden by mist."},
		Image{Description: "Tomas rowing out alone.", Dialog: []string{"2:Stay here. I'll be back by noon."}},
		Image{Description: "An empty boat drifting."},
	)
	s.Seed("harbor/chapter-2",
		Image{Description: "Noon. The pier is crowded."},
		Image{Description: "Mira searching the horizon.", Dialog: []string{"1:Where are you?"}},
	)
	s.Seed("harbor/chapter-2/sketches", Image{Description: "Rough layout of the pier."})
	s.SetDefaultPath(DemoPath)
}
