package model

import "errors"

var errPrefixAfterFeatures = errors.New("model: cannot set tile id prefix after features have been added")
