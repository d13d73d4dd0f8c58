package sources

import (
	"testing"
)

func TestSubtitleDiscoverEpisodes(t *testing.T) {
	body := `<html><body>
		<a href="/series/Better_Call_Saul-3032476/season-1/episode-1-Uno">Uno</a>
		<a href="/series/Better_Call_Saul-3032476/season-1/episode-2-Mijo">Mijo</a>
		<a href="/movies/something">a movie</a>
		<a href="https://ads.example.com/series/fake">offsite</a>
	</body></html>`
	raw := rawPage("https://subslikescript.com/search?q=better_call_saul", body)

	got := (&Subtitle{}).DiscoverEpisodes(raw)
	want := []string{
		"https://subslikescript.com/series/Better_Call_Saul-3032476/season-1/episode-1-Uno",
		"https://subslikescript.com/series/Better_Call_Saul-3032476/season-1/episode-2-Mijo",
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("link[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSubtitleExtract(t *testing.T) {
	body := `<html><body>
		<h1>Better Call Saul - S01E01 - Uno</h1>
		<div class="full-script">
			JIMMY<br>
			- Need a ride?<br>
			CHUCK<br>
			I'm fine. The car stays in the garage.<br>
			JIMMY<br>
			Suit yourself.<br>
		</div>
	</body></html>`
	raw := rawPage("https://subslikescript.com/series/Better_Call_Saul/s01e01", body)

	got := (&Subtitle{}).Extract(raw, testChuck)
	if len(got) != 1 {
		t.Fatalf("got %d scenes, want 1", len(got))
	}
	s := got[0]
	if s.EpisodeCode != "S01E01" {
		t.Errorf("EpisodeCode = %q, want S01E01", s.EpisodeCode)
	}
	if len(s.Dialogue) != 3 {
		t.Fatalf("got %d turns, want 3: %+v", len(s.Dialogue), s.Dialogue)
	}
	if s.Dialogue[0].Speaker != "JIMMY" || s.Dialogue[1].Speaker != "CHUCK" {
		t.Errorf("speakers = %q, %q", s.Dialogue[0].Speaker, s.Dialogue[1].Speaker)
	}
	if s.Dialogue[0].Line != "Need a ride?" {
		t.Errorf("dash cue line = %q, want %q", s.Dialogue[0].Line, "Need a ride?")
	}
}

func TestSubtitleExtractCharacterAbsent(t *testing.T) {
	body := `<html><body>
		<h1>Some Other Show - S05E09</h1>
		<div class="full-script">
			ALICE<br>
			The quarterly numbers look bad.<br>
			BOB<br>
			They always do.<br>
		</div>
	</body></html>`
	got := (&Subtitle{}).Extract(rawPage("https://subslikescript.com/series/x", body), testChuck)
	if len(got) != 0 {
		t.Errorf("got %d scenes, want 0", len(got))
	}
}

func TestSubtitleExtractMentionOnly(t *testing.T) {
	body := `<html><body>
		<h1>S02E04</h1>
		<div class="full-script">
			KIM<br>
			Have you talked to Chuck about it?<br>
			HOWARD<br>
			Not yet.<br>
		</div>
	</body></html>`
	got := (&Subtitle{}).Extract(rawPage("https://subslikescript.com/series/x", body), testChuck)
	if len(got) != 1 {
		t.Fatalf("got %d scenes, want 1", len(got))
	}
}

func TestSubtitleExtractNoScriptBody(t *testing.T) {
	body := `<html><body><h1>Title</h1><p>nothing else</p></body></html>`
	if got := (&Subtitle{}).Extract(rawPage("https://subslikescript.com/series/x", body), testChuck); len(got) != 0 {
		t.Errorf("got %d scenes, want 0", len(got))
	}
}
