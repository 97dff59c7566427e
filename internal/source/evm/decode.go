package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/dotgo-labs/dotgo-indexer/internal/event"
)

// portfolioABI declares the three marketplace events. Indexed arguments are
// recovered from topics, the rest from the data section positionally.
const portfolioABI = `[
  {"type":"event","name":"ProjectCreated","inputs":[
    {"name":"projectId","type":"uint64","indexed":true},
    {"name":"student","type":"address","indexed":true},
    {"name":"title","type":"string","indexed":false},
    {"name":"description","type":"string","indexed":false},
    {"name":"githubUrl","type":"string","indexed":false},
    {"name":"demoUrl","type":"string","indexed":false},
    {"name":"skills","type":"string[]","indexed":false}
  ]},
  {"type":"event","name":"ProjectUnlocked","inputs":[
    {"name":"projectId","type":"uint64","indexed":true},
    {"name":"reviewer","type":"address","indexed":true},
    {"name":"student","type":"address","indexed":false},
    {"name":"amountPaid","type":"uint256","indexed":false}
  ]},
  {"type":"event","name":"ReviewSubmitted","inputs":[
    {"name":"projectId","type":"uint64","indexed":true},
    {"name":"reviewer","type":"address","indexed":true},
    {"name":"rating","type":"uint8","indexed":false},
    {"name":"comment","type":"string","indexed":false}
  ]}
]`

// Decoder maps portfolio contract logs into raw events by topic0.
type Decoder struct {
	events map[common.Hash]abi.Event
}

// NewDecoder parses the declared event ABI.
func NewDecoder() (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(portfolioABI))
	if err != nil {
		return nil, fmt.Errorf("parse portfolio abi: %w", err)
	}
	events := make(map[common.Hash]abi.Event, len(parsed.Events))
	for _, ev := range parsed.Events {
		events[ev.ID] = ev
	}
	return &Decoder{events: events}, nil
}

// Decode maps a log into a raw event. ok is false when the log's topic0 is
// not one of the declared events; err reports a log that matched but could
// not be unpacked.
func (d *Decoder) Decode(lg types.Log) (event.Raw, bool, error) {
	if len(lg.Topics) == 0 {
		return event.Raw{}, false, nil
	}
	ev, ok := d.events[lg.Topics[0]]
	if !ok {
		return event.Raw{}, false, nil
	}

	args := map[string]any{}
	indexed, nonIndexed := splitIndexed(ev.Inputs)
	if err := abi.ParseTopicsIntoMap(args, indexed, lg.Topics[1:]); err != nil {
		return event.Raw{}, false, fmt.Errorf("%s: parse topics: %w", ev.Name, err)
	}
	if err := nonIndexed.UnpackIntoMap(args, lg.Data); err != nil {
		return event.Raw{}, false, fmt.Errorf("%s: unpack data: %w", ev.Name, err)
	}

	raw := event.Raw{
		Name:        ev.Name,
		ProjectID:   asDecimal(args["projectId"]),
		TxHash:      lg.TxHash.Hex(),
		BlockNumber: lg.BlockNumber,
	}

	switch ev.Name {
	case "ProjectCreated":
		raw.Student = asAddress(args["student"])
		raw.Title = asString(args["title"])
		raw.Description = asString(args["description"])
		raw.GithubURL = asString(args["githubUrl"])
		raw.DemoURL = asString(args["demoUrl"])
		raw.Skills, _ = args["skills"].([]string)
	case "ProjectUnlocked":
		raw.Reviewer = asAddress(args["reviewer"])
		raw.Student = asAddress(args["student"])
		raw.Amount = asDecimal(args["amountPaid"])
	case "ReviewSubmitted":
		raw.Reviewer = asAddress(args["reviewer"])
		if r, ok := args["rating"].(uint8); ok {
			raw.Rating = int(r)
		}
		raw.Comment = asString(args["comment"])
	}

	return raw, true, nil
}

func splitIndexed(args abi.Arguments) (indexed abi.Arguments, nonIndexed abi.Arguments) {
	for _, a := range args {
		if a.Indexed {
			indexed = append(indexed, a)
		} else {
			nonIndexed = append(nonIndexed, a)
		}
	}
	return indexed, nonIndexed
}

func asDecimal(v any) string {
	switch n := v.(type) {
	case uint64:
		return fmt.Sprintf("%d", n)
	case *big.Int:
		return n.String()
	default:
		return ""
	}
}

func asAddress(v any) string {
	if a, ok := v.(common.Address); ok {
		return a.Hex()
	}
	return ""
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
