package human

import "math/rand"

var UserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36 Edg/120.0.0.0",
}

type WindowSize struct {
	Width  int
	Height int
}

var WindowSizes = []WindowSize{
	{1366, 768}, {1920, 1080}, {1440, 900}, {1536, 864}, {1600, 900},
	{1280, 720}, {1280, 1024},
}

func RandomUserAgent(rng *rand.Rand) string {
	return UserAgents[rng.Intn(len(UserAgents))]
}

func RandomWindowSize(rng *rand.Rand) WindowSize {
	return WindowSizes[rng.Intn(len(WindowSizes))]
}
