// Package proto implements the plain-text wire protocol: delimiter-
// terminated lines of the form "<code>:<message>\r\n" going out, and
// free-text commands with telnet-style backspace editing coming in.
package proto

import (
	"fmt"
	"log"
	"strings"
)

// Server→client response codes.
const (
	CodePlayerUpdate      = 101 // username, x, y, score[, suffix]
	CodeTreasureProximity = 102 // treasure_id, x, y
	CodeTreasureUpdate    = 103 // username, treasure_id, score
	CodeMap               = 104 // map header or raw map row
	CodeSuccess           = 200
	CodeUserError         = 400
	CodeServerError       = 500
)

// codeNames supplies the default message when none is given, and doubles
// as the set of valid codes.
var codeNames = map[int]string{
	CodePlayerUpdate:      "PlayerUpdate",
	CodeTreasureProximity: "TreasureProximity",
	CodeTreasureUpdate:    "TreasureUpdate",
	CodeMap:               "Map",
	CodeSuccess:           "Success",
	CodeUserError:         "UserError",
	CodeServerError:       "ServerError",
}

// Response encodes one protocol line. An unknown code is reported as a
// server error rather than leaking an invalid code to the client.
func Response(code int, msg string) []byte {
	name, ok := codeNames[code]
	if !ok {
		log.Printf("proto: invalid response code %d", code)
		code = CodeServerError
		name = codeNames[CodeServerError]
	}
	if msg == "" {
		msg = name
	}
	return []byte(fmt.Sprintf("%d:%s\r\n", code, msg))
}

// Tokenize splits a command line on whitespace and lower-cases every
// token. The first token is the operation name.
func Tokenize(line string) []string {
	fields := strings.Fields(line)
	for i, f := range fields {
		fields[i] = strings.ToLower(f)
	}
	return fields
}
