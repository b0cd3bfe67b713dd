package credential

// adjectives and nouns are the curated word lists passphrases are drawn
// from, producing memorable "{adjective}-{noun}-{nn}" codes (spec §4.2).
var adjectives = []string{
	"amber", "brave", "calm", "dusty", "eager", "faded", "gentle", "happy",
	"icy", "jolly", "keen", "lucky", "misty", "noble", "olive", "plucky",
	"quiet", "rusty", "sunny", "tidy", "upbeat", "vivid", "witty", "zesty",
}

var nouns = []string{
	"falcon", "harbor", "meadow", "canyon", "lantern", "ember", "willow",
	"granite", "compass", "cedar", "comet", "pebble", "thicket", "otter",
	"summit", "coral", "quarry", "marsh", "beacon", "grove", "tundra", "reef",
}
