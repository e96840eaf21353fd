package testhelpers

// ShippingSchemaSQL creates the shipping schema used by integration tests:
// camelCase columns, a reserved-word table ("order") and address data that is
// reachable from shipment only through pii.
const ShippingSchemaSQL = `
CREATE TABLE account (
	id uuid PRIMARY KEY,
	title text NOT NULL,
	type text NOT NULL,
	"createdAt" timestamptz NOT NULL DEFAULT now()
);
COMMENT ON COLUMN account.type IS 'Account category, e.g. business or personal';

CREATE TABLE courier (
	id serial PRIMARY KEY,
	name text NOT NULL
);

CREATE TABLE pii (
	id serial PRIMARY KEY,
	"firstName" text,
	"lastName" text,
	"companyName" text,
	address1 text,
	city text,
	country text,
	"postalCode" text,
	email text
);
COMMENT ON COLUMN pii.city IS 'Destination city of the shipping address';

CREATE TABLE "order" (
	id serial PRIMARY KEY,
	"orderNumber" text NOT NULL,
	"accountId" uuid REFERENCES account(id),
	"shipToId" integer REFERENCES pii(id),
	"trackingNumber" text,
	"shippingCourier" text,
	"createdAt" timestamptz NOT NULL DEFAULT now()
);

CREATE TABLE shipment (
	id serial PRIMARY KEY,
	"orderId" integer REFERENCES "order"(id),
	"courierServiceTypeId" integer REFERENCES courier(id),
	"shipToId" integer REFERENCES pii(id),
	"deliveryDate" date,
	shipped boolean NOT NULL DEFAULT false,
	"internalStatus" text NOT NULL,
	cost numeric(10,2) NOT NULL DEFAULT 0,
	"createdAt" timestamptz NOT NULL DEFAULT now()
);
COMMENT ON COLUMN shipment."internalStatus" IS 'Lifecycle status: pending, in_transit, delivered, delayed';

INSERT INTO account (id, title, type, "createdAt") VALUES
	('6f1c2b9e-8d0a-4c1e-9f3b-2a7d5e4c3b21', 'Acme Corp', 'business', '2023-11-05T10:00:00Z'),
	('0a8e4d52-1f6b-4b8e-a2c4-9d3e7f1b5c60', 'Jane Doe', 'personal', '2024-02-14T09:30:00Z');

INSERT INTO courier (name) VALUES ('DHL'), ('FedEx');

INSERT INTO pii ("firstName", "lastName", city, country) VALUES
	('Ali', 'Khan', 'Karachi', 'PK'),
	('Sara', 'Ahmed', 'Lahore', 'PK');

INSERT INTO "order" ("orderNumber", "accountId", "shipToId", "shippingCourier") VALUES
	('ORD-1001', '6f1c2b9e-8d0a-4c1e-9f3b-2a7d5e4c3b21', 1, 'DHL'),
	('ORD-1002', '0a8e4d52-1f6b-4b8e-a2c4-9d3e7f1b5c60', 2, 'FedEx');

INSERT INTO shipment ("orderId", "courierServiceTypeId", "shipToId", shipped, "internalStatus", cost) VALUES
	(1, 1, 1, false, 'pending', 120.50),
	(1, 1, 1, false, 'pending', 80.00),
	(2, 2, 2, true, 'delivered', 45.25),
	(2, 2, 2, false, 'pending', 60.00);
`
