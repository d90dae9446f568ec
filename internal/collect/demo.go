package collect

import (
	"context"
	"time"

	"archaeologist/internal/types"
)

// DemoRepoURL is the default source id of the bundled sample.
const DemoRepoURL = "https://github.com/legacy-corp/vulnerable-py2-app"

// LegacyFiles returns the bundled Python 2.7 sample application. The slice is
// fresh on every call.
func LegacyFiles() []types.SourceFile {
	return []types.SourceFile{
		{Name: "README.md", Content: legacyReadme},
		{Name: "app.py", Content: legacyApp},
		{Name: "utils.py", Content: legacyUtils},
		{Name: "requirements.txt", Content: legacyRequirements},
	}
}

// Static answers every source id with a fixed file set after an optional
// simulated clone latency.
type Static struct {
	Files   []types.SourceFile
	Latency time.Duration
}

// Demo is the Static collector over LegacyFiles.
func Demo(latency time.Duration) Static {
	return Static{Files: LegacyFiles(), Latency: latency}
}

func (s Static) Collect(ctx context.Context, _ string) ([]types.SourceFile, error) {
	if s.Latency > 0 {
		t := time.NewTimer(s.Latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}
	if len(s.Files) == 0 {
		return nil, ErrNoFiles
	}
	return append([]types.SourceFile(nil), s.Files...), nil
}

const legacyReadme = `# Legacy User Service (v1.0)
DEPRECATED: Do not deploy to production.

This service handles user profiles and configuration loading.
Last updated: Oct 2014.

## Dependencies
- Python 2.7
- Flask 0.12

## Todo
- Upgrade to Python 3 (Pending since 2018)
- Fix known security issues with pickle
`

const legacyApp = `import os
import cPickle as pickle
from flask import Flask, request, render_template

app = Flask(__name__)

@app.route('/')
def index():
    return "Welcome to the Legacy App"

@app.route('/user/<username>')
def user_profile(username):
    # SQL Injection vulnerability
    query = "SELECT * FROM users WHERE username = '%s'" % username
    print "Executing query: " + query
    return "Profile for " + username

@app.route('/load_config', methods=['POST'])
def load_config():
    data = request.data
    # Insecure deserialization
    config = pickle.loads(data)
    return "Config loaded"

if __name__ == '__main__':
    app.run(debug=True, host='0.0.0.0')`

const legacyUtils = `import urllib2

def fetch_url(url):
    print "Fetching " + url
    try:
        response = urllib2.urlopen(url)
        return response.read()
    except Exception, e:
        print "Error: " + str(e)
        return None

def process_data(data_list):
    # Legacy iteration
    results = []
    for i in range(len(data_list)):
        results.append(data_list[i] * 2)
    return results`

const legacyRequirements = `Flask==0.12
requests==2.4.0`
