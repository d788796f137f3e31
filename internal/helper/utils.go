package helper

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// chunkNamespace scopes the name based chunk ids of this corpus.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("literary-rag/chunks"))

// GenerateUUID creates a random unique UUID string
func GenerateUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %v", err)
	}
	return id.String(), nil
}

// ChunkID is stable across runs, so re-ingesting a file overwrites its chunks.
// chapter is the position of the chapter in the source, titles repeat.
func ChunkID(source string, chapter, index int) string {
	key := source + "|" + strconv.Itoa(chapter) + "|" + strconv.Itoa(index)
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

// pretty print
func PrettyPrint(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Msg("Error pretty printing")
	}
	fmt.Println(string(b))
}

// CreateFolder creates path and its parents if missing
func CreateFolder(path string) error {
	if path == "" {
		return nil
	}
	return os.MkdirAll(path, 0o755)
}
