package core

// UniverseInfo is the static prompt context for one supported universe.
// The catalog is loaded once at process start and never mutated.
type UniverseInfo struct {
	Context    string
	Characters []string
	World      string
}

var universeCatalog = map[string]UniverseInfo{
	"Harry Potter": {
		Context: "You are an expert in the Harry Potter universe. You know all seven books, characters, spells, locations, and lore intimately. " +
			"You write in J.K. Rowling's style with rich descriptions, British terminology, and magical atmosphere.",
		Characters: []string{"Harry Potter", "Hermione Granger", "Ron Weasley", "Voldemort", "Dumbledore", "Snape"},
		World:      "Hogwarts, Ministry of Magic, Diagon Alley",
	},
	"Lord of the Rings": {
		Context: "You are an expert in Tolkien's Middle-earth. You know The Hobbit, LOTR trilogy, and the lore of Middle-earth. " +
			"You write in Tolkien's epic, detailed style with archaic language and grand descriptions.",
		Characters: []string{"Frodo", "Gandalf", "Aragorn", "Legolas", "Gimli", "Sauron"},
		World:      "The Shire, Mordor, Rivendell, Rohan",
	},
	"Marvel MCU": {
		Context: "You are an expert in the Marvel Cinematic Universe. You know all movies, characters, powers, and storylines. " +
			"You write action-packed stories with witty dialogue and dramatic moments.",
		Characters: []string{"Iron Man", "Captain America", "Thor", "Hulk", "Black Widow", "Thanos"},
		World:      "Avengers Tower, Wakanda, Asgard, New York",
	},
	"Star Wars": {
		Context: "You are an expert in the Star Wars universe. You know all movies, characters, Force powers, and galactic lore. " +
			"You write epic space opera with dramatic conflict between light and dark.",
		Characters: []string{"Luke Skywalker", "Darth Vader", "Yoda", "Han Solo", "Leia", "Obi-Wan"},
		World:      "Tatooine, Coruscant, Death Star, Endor",
	},
}

// universeNames fixes the order returned by UniverseNames; map iteration
// order would not be stable across calls.
var universeNames = []string{"Harry Potter", "Lord of the Rings", "Marvel MCU", "Star Wars"}

// LookupUniverse returns the prompt context for a supported universe name.
func LookupUniverse(name string) (UniverseInfo, bool) {
	info, ok := universeCatalog[name]
	return info, ok
}

// UniverseNames returns the supported universe names in a stable order.
func UniverseNames() []string {
	names := make([]string, len(universeNames))
	copy(names, universeNames)
	return names
}
